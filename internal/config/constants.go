// internal/config/constants.go
package config

import "time"

const (
	AppName    = "wordcard"
	AppVersion = "1.0.0"
)

const (
	DefaultServerPort       = ":8080"
	DefaultLogLevel         = "info"
	DefaultLocalStorePath   = "wordcard.db"
	DefaultPageSize         = 20
	DefaultTrainCardsCount  = 10
	DefaultSignedURLTTL     = 7 * 24 * time.Hour
	DefaultAccessTokenTTL   = 24 * time.Hour
	DefaultCooldownAccuracy = 0.85
	DefaultCooldownStreak   = 3
	DefaultCooldownPeriod   = 48 * time.Hour
)
