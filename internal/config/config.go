// internal/config/config.go
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LocalStoreConfig struct {
	Path string `mapstructure:"path"`
}

type AppConfig struct {
	Name             string        `mapstructure:"name"`
	FrontendURL      string        `mapstructure:"frontend_url"`
	PageSize         int           `mapstructure:"page_size"`
	TrainCardsCount  int           `mapstructure:"train_cards_count"`
	CooldownEnabled  bool          `mapstructure:"cooldown_enabled"`
	CooldownAccuracy float64       `mapstructure:"cooldown_accuracy"`
	CooldownStreak   int           `mapstructure:"cooldown_streak"`
	CooldownPeriod   time.Duration `mapstructure:"cooldown_period"`
}

type S3Config struct {
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	AuthType        string        `mapstructure:"auth_type"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	SignedURLTTL    time.Duration `mapstructure:"signed_url_ttl"`
}

type MailerConfig struct {
	Type string `mapstructure:"type"` // "ses" or "log"
}

type SESConfig struct {
	Region          string `mapstructure:"region"`
	AuthType        string `mapstructure:"auth_type"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	From            string `mapstructure:"from"`
}

type JWTConfig struct {
	SecretKey      string        `mapstructure:"secret_key"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	LocalStore LocalStoreConfig `mapstructure:"local_store"`
	App        AppConfig        `mapstructure:"app"`
	S3         S3Config         `mapstructure:"s3"`
	Mailer     MailerConfig     `mapstructure:"mailer"`
	SES        SESConfig        `mapstructure:"ses"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Log        LogConfig        `mapstructure:"log"`
}

// Load reads config.yaml from path (and the working directory) with
// APP_-prefixed environment overrides, then applies defaults.
func Load(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Warning: Config file not found. Using defaults and environment variables.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.App.Name == "" {
		cfg.App.Name = AppName
	}
	if cfg.App.PageSize <= 0 {
		cfg.App.PageSize = DefaultPageSize
	}
	if cfg.App.TrainCardsCount <= 0 {
		cfg.App.TrainCardsCount = DefaultTrainCardsCount
	}
	if cfg.App.CooldownAccuracy <= 0 {
		cfg.App.CooldownAccuracy = DefaultCooldownAccuracy
	}
	if cfg.App.CooldownStreak <= 0 {
		cfg.App.CooldownStreak = DefaultCooldownStreak
	}
	if cfg.App.CooldownPeriod <= 0 {
		cfg.App.CooldownPeriod = DefaultCooldownPeriod
	}
	if cfg.LocalStore.Path == "" {
		cfg.LocalStore.Path = DefaultLocalStorePath
	}
	if cfg.S3.SignedURLTTL <= 0 {
		cfg.S3.SignedURLTTL = DefaultSignedURLTTL
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		cfg.JWT.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Database.URL == "" {
		log.Println("Warning: Database URL is not set; remote mode will be unavailable.")
	}

	return &cfg, nil
}
