package models

// TaskInstanceCompletion records the event of a user completing an instance.
// PointsGranted is computed once at creation and never recomputed; reverted
// completions keep their historical value and are only excluded from totals
// through the deleted_at filter.
type TaskInstanceCompletion struct {
	Tracking
	TaskInstanceID         string        `gorm:"type:uuid;not null;index" json:"task_instance_id"`
	TaskInstance           *TaskInstance `gorm:"foreignKey:TaskInstanceID;constraint:OnDelete:RESTRICT" json:"task_instance,omitempty"`
	UserWhoCompletedTaskID string        `gorm:"type:uuid;not null;index" json:"user_who_completed_task_id"`
	UserWhoCompletedTask   *User         `gorm:"foreignKey:UserWhoCompletedTaskID;constraint:OnDelete:RESTRICT" json:"user_who_completed_task,omitempty"`
	PointsGranted          int           `gorm:"not null" json:"points_granted"`
}
