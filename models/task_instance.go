package models

import "time"

// TaskInstance is a single completable occurrence of a task. The first
// instance is created together with the task; recurring tasks get a new
// pending instance each time the current one is completed.
type TaskInstance struct {
	Tracking
	TaskID     string    `gorm:"type:uuid;not null;index" json:"task_id"`
	Task       *Task     `gorm:"foreignKey:TaskID;constraint:OnDelete:RESTRICT" json:"task,omitempty"`
	ActiveFrom time.Time `gorm:"not null;index" json:"active_from"`
	Completed  bool      `gorm:"not null;default:false" json:"completed"`
}

// IsActiveAt reports whether the instance is completable at the given time:
// not completed, not deleted, already due, and its task not deleted.
// Task must be preloaded for the last check to apply.
func (ti *TaskInstance) IsActiveAt(now time.Time) bool {
	if ti.Completed || ti.DeletedAt.Valid {
		return false
	}
	if ti.ActiveFrom.After(now) {
		return false
	}
	if ti.Task != nil && !ti.Task.Active() {
		return false
	}
	return true
}

// CurrentPrizeAt computes the points for completing the instance at the
// given time. The multiplier is ceil(elapsed / (2 * interval)) with a floor
// of 1, so the prize doubles roughly every two refresh intervals the
// instance sits uncompleted. Task must be preloaded.
func (ti *TaskInstance) CurrentPrizeAt(now time.Time) int {
	window := 2 * ti.Task.Interval()
	elapsed := now.Sub(ti.ActiveFrom)
	mult := time.Duration(1)
	if elapsed > 0 {
		mult = (elapsed + window - 1) / window
		if mult < 1 {
			mult = 1
		}
	}
	return ti.Task.BasePointsPrize * int(mult)
}
