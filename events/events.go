// Package events defines the engine's outbound event payloads and their
// RabbitMQ publisher.
package events

import "time"

// TaskCompletedEvent is published after a completion transaction commits.
// It carries enough for downstream consumers (notifications, analytics) to
// act without querying the primary database.
type TaskCompletedEvent struct {
	CompletionID  string    `json:"completion_id"`
	TaskID        string    `json:"task_id"`
	TaskName      string    `json:"task_name"`
	TeamID        string    `json:"team_id,omitempty"`
	InstanceID    string    `json:"instance_id"`
	UserID        string    `json:"user_id"`
	PointsGranted int       `json:"points_granted"`
	CompletedAt   time.Time `json:"completed_at"`
}

// CompletionRevertedEvent is published after a revert transaction commits.
type CompletionRevertedEvent struct {
	CompletionID  string    `json:"completion_id"`
	TaskID        string    `json:"task_id"`
	InstanceID    string    `json:"instance_id"`
	UserID        string    `json:"user_id"`
	PointsGranted int       `json:"points_granted"`
	RevertedAt    time.Time `json:"reverted_at"`
}
