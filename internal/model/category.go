// internal/model/category.go
package model

import (
	"time"
)

// Category is a named grouping of cards owned either by an authenticated
// user (remote row) or by the anonymous device (entry in the local
// category blob).
type Category struct {
	ID     string `gorm:"type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"type:uuid;index" json:"-"`
	Name   string `gorm:"not null" json:"name"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

// StorageMode says which backend a gateway operation targets. It is derived
// from the session at call time, never stored.
type StorageMode string

const (
	ModeLocal  StorageMode = "local"
	ModeRemote StorageMode = "remote"
)

type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type UpdateCategoryRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}
