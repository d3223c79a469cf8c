package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"household-task-system/models"
)

// PointsService aggregates the points granted by completions. It reads only;
// prize values are frozen on the completion rows by the lifecycle engine.
type PointsService struct {
	DB *gorm.DB
}

func NewPointsService(db *gorm.DB) *PointsService {
	return &PointsService{DB: db}
}

// MemberPoints pairs a team member with their point total.
type MemberPoints struct {
	Member models.User `json:"member"`
	Points int         `json:"points"`
}

// CountUserPoints sums points_granted over the user's completions of the
// team's tasks. A completion counts only while its whole ownership chain is
// undeleted: the completion itself (via the model's soft-delete scope), its
// instance and its task. Bounds on created_at are inclusive. No matching
// rows yields 0, never an error.
//
// Deliberately narrower than the instance Active derivation: neither
// completed nor active_from play a role here.
func (s *PointsService) CountUserPoints(ctx context.Context, userID, teamID string, from, to *time.Time) (int, error) {
	q := s.DB.WithContext(ctx).
		Model(&models.TaskInstanceCompletion{}).
		Select("COALESCE(SUM(task_instance_completions.points_granted), 0)").
		Joins("JOIN task_instances ON task_instances.id = task_instance_completions.task_instance_id").
		Joins("JOIN tasks ON tasks.id = task_instances.task_id").
		Where("task_instance_completions.user_who_completed_task_id = ?", userID).
		Where("tasks.team_id = ?", teamID).
		Where("task_instances.deleted_at IS NULL").
		Where("tasks.deleted_at IS NULL")
	if from != nil {
		q = q.Where("task_instance_completions.created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("task_instance_completions.created_at <= ?", *to)
	}

	var total int
	if err := q.Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("sum user points: %w", err)
	}
	return total, nil
}

// CountTeamMembersPoints returns one entry per team member, zero-point
// members included, ordered by member primary key.
func (s *PointsService) CountTeamMembersPoints(ctx context.Context, teamID string, from, to *time.Time) ([]MemberPoints, error) {
	var team models.Team
	if err := s.DB.WithContext(ctx).First(&team, "id = ?", teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("fetch team: %w", err)
	}

	var members []models.User
	err := s.DB.WithContext(ctx).
		Joins("JOIN team_members ON team_members.user_id = users.id").
		Where("team_members.team_id = ?", teamID).
		Order("users.id").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}

	result := make([]MemberPoints, 0, len(members))
	for _, member := range members {
		points, err := s.CountUserPoints(ctx, member.ID, teamID, from, to)
		if err != nil {
			return nil, err
		}
		result = append(result, MemberPoints{Member: member, Points: points})
	}
	return result, nil
}
