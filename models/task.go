package models

import "time"

// DefaultRefreshInterval is assumed for prize growth when a task carries no
// refresh interval of its own.
const DefaultRefreshInterval = 7 * 24 * time.Hour

// Task is a chore template owned by a team. A task is never completed
// directly; it spawns TaskInstances over time and those are what users
// complete. RefreshInterval is set iff the task is meant to recur.
type Task struct {
	Tracking
	Name            string         `gorm:"size:50;not null" json:"name"`
	Slug            string         `gorm:"index" json:"slug"`
	Description     string         `gorm:"size:500" json:"description"`
	TeamID          *string        `gorm:"type:uuid;index" json:"team_id,omitempty"`
	Team            *Team          `gorm:"foreignKey:TeamID;constraint:OnDelete:SET NULL" json:"team,omitempty"`
	BasePointsPrize int            `gorm:"not null" json:"base_points_prize"`
	RefreshInterval *time.Duration `gorm:"type:bigint" json:"refresh_interval,omitempty"`
	IsRecurring     bool           `gorm:"not null" json:"is_recurring"`
}

// Interval returns the effective prize-growth interval.
func (t *Task) Interval() time.Duration {
	if t.RefreshInterval != nil && *t.RefreshInterval > 0 {
		return *t.RefreshInterval
	}
	return DefaultRefreshInterval
}
