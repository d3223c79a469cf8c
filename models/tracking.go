package models

import (
	"time"

	"gorm.io/gorm"
)

// Tracking carries the audit metadata shared by every persisted entity.
// DeletedAt doubles as the soft-delete marker: a non-null value takes the
// row out of default queries while keeping it around for audit history.
type Tracking struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
	CreatedByID *string        `gorm:"type:uuid;index" json:"created_by,omitempty"`
	CreatedBy   *User          `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL" json:"-"`
	ModifiedAt  time.Time      `json:"modified_at" gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// Active reports whether the record has not been soft-deleted.
func (t *Tracking) Active() bool {
	return !t.DeletedAt.Valid
}

// TrackingRef exposes the embedded tracking fields; every entity embedding
// Tracking satisfies the Tracked interface through it.
func (t *Tracking) TrackingRef() *Tracking {
	return t
}

// Tracked is implemented by all entities that embed Tracking.
type Tracked interface {
	TrackingRef() *Tracking
}
