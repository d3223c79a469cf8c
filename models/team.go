package models

// Team groups the users who share a household's chores. Joining is gated by
// the team password; the creator is only recorded in created_by and does not
// become a member until they join like everyone else.
type Team struct {
	Tracking
	Name         string `gorm:"size:50;not null" json:"name"`
	PasswordHash string `gorm:"not null" json:"-"`
	Members      []User `gorm:"many2many:team_members" json:"members,omitempty"`
}
