package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"household-task-system/events"
	"household-task-system/logger"
	"household-task-system/models"
)

// EventPublisher receives lifecycle events after the enclosing transaction
// has committed. Publishing is best-effort: failures are logged and never
// fail the operation that triggered them.
type EventPublisher interface {
	PublishTaskCompleted(ctx context.Context, event events.TaskCompletedEvent) error
	PublishCompletionReverted(ctx context.Context, event events.CompletionRevertedEvent) error
}

// TaskService is the task-instance lifecycle engine: it owns every state
// transition of tasks, their instances and completions. All multi-row
// transitions run inside a single transaction with the affected instance
// rows locked.
type TaskService struct {
	DB *gorm.DB

	// Events is optional; nil disables publishing.
	Events EventPublisher

	now func() time.Time
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{DB: db, now: time.Now}
}

// CreateTaskInput carries the caller-supplied fields for a new task.
type CreateTaskInput struct {
	Name            string
	Description     string
	TeamID          string
	BasePointsPrize int
	RefreshInterval *time.Duration
	IsRecurring     bool
	CreatedByID     string
}

// CreateTask validates and persists a task together with its first pending
// instance. The two writes are atomic: a task without an instance never
// becomes visible.
func (s *TaskService) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: task name must not be empty", ErrValidation)
	}
	if len(in.Name) > 50 {
		return nil, fmt.Errorf("%w: task name must be at most 50 characters", ErrValidation)
	}
	if len(in.Description) > 500 {
		return nil, fmt.Errorf("%w: description must be at most 500 characters", ErrValidation)
	}
	if in.BasePointsPrize < 1 {
		return nil, fmt.Errorf("%w: base_points_prize must be at least 1", ErrValidation)
	}
	if in.RefreshInterval != nil && *in.RefreshInterval <= 0 {
		return nil, fmt.Errorf("%w: refresh_interval must be positive", ErrValidation)
	}
	if in.IsRecurring && in.RefreshInterval == nil {
		return nil, fmt.Errorf("%w: a recurring task needs a refresh_interval", ErrValidation)
	}

	var team models.Team
	if err := s.DB.WithContext(ctx).First(&team, "id = ?", in.TeamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("fetch team: %w", err)
	}
	member, err := isTeamMember(s.DB.WithContext(ctx), in.CreatedByID, team.ID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: only members of the given team may create tasks", ErrNotTeamMember)
	}

	now := s.now()
	task := &models.Task{
		Tracking: models.Tracking{
			ID:          uuid.NewString(),
			CreatedAt:   now,
			CreatedByID: &in.CreatedByID,
		},
		Name:            in.Name,
		Slug:            slug.Make(in.Name),
		Description:     in.Description,
		TeamID:          &team.ID,
		BasePointsPrize: in.BasePointsPrize,
		RefreshInterval: in.RefreshInterval,
		IsRecurring:     in.IsRecurring,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		first := &models.TaskInstance{
			Tracking: models.Tracking{
				ID:          uuid.NewString(),
				CreatedAt:   now,
				CreatedByID: &in.CreatedByID,
			},
			TaskID:     task.ID,
			ActiveFrom: now,
		}
		if err := tx.Create(first).Error; err != nil {
			return fmt.Errorf("create first instance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("task created",
		zap.String("task_id", task.ID),
		zap.String("team_id", team.ID),
		zap.Bool("recurring", task.IsRecurring))
	return task, nil
}

// UpdateTaskInput updates only the fields that are set. The owning team can
// never change.
type UpdateTaskInput struct {
	Name            *string
	Description     *string
	TeamID          *string
	BasePointsPrize *int
	RefreshInterval *time.Duration
	IsRecurring     *bool
}

func (s *TaskService) UpdateTask(ctx context.Context, taskID string, in UpdateTaskInput) (*models.Task, error) {
	if in.TeamID != nil {
		return nil, ErrTeamChange
	}

	var task models.Task
	if err := s.DB.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("fetch task: %w", err)
	}

	if in.Name != nil {
		if *in.Name == "" || len(*in.Name) > 50 {
			return nil, fmt.Errorf("%w: task name must be 1-50 characters", ErrValidation)
		}
		task.Name = *in.Name
		task.Slug = slug.Make(*in.Name)
	}
	if in.Description != nil {
		if len(*in.Description) > 500 {
			return nil, fmt.Errorf("%w: description must be at most 500 characters", ErrValidation)
		}
		task.Description = *in.Description
	}
	if in.BasePointsPrize != nil {
		if *in.BasePointsPrize < 1 {
			return nil, fmt.Errorf("%w: base_points_prize must be at least 1", ErrValidation)
		}
		task.BasePointsPrize = *in.BasePointsPrize
	}
	if in.RefreshInterval != nil {
		if *in.RefreshInterval <= 0 {
			return nil, fmt.Errorf("%w: refresh_interval must be positive", ErrValidation)
		}
		task.RefreshInterval = in.RefreshInterval
	}
	if in.IsRecurring != nil {
		task.IsRecurring = *in.IsRecurring
	}
	if task.IsRecurring && task.RefreshInterval == nil {
		return nil, fmt.Errorf("%w: a recurring task needs a refresh_interval", ErrValidation)
	}

	if err := s.DB.WithContext(ctx).Save(&task).Error; err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return &task, nil
}

// DeleteTask soft-deletes the task row. Its instances stay in place but stop
// being active through the derived task-not-deleted check.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task := &models.Task{Tracking: models.Tracking{ID: taskID}}
		return softDeleteLocked(tx, task, s.now())
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTaskNotFound
	}
	if err != nil {
		return err
	}
	logger.Info("task deleted", zap.String("task_id", taskID))
	return nil
}

// SubmitCompletion marks the instance completed on behalf of the user,
// freezing the prize at its current value and, for recurring tasks,
// scheduling the next pending instance one refresh interval out.
//
// Preconditions are checked optimistically, then re-validated under the
// instance row lock: the post-lock completed re-check is what keeps two
// concurrent submissions from both succeeding.
func (s *TaskService) SubmitCompletion(ctx context.Context, instanceID, userID string) (*models.TaskInstanceCompletion, error) {
	var inst models.TaskInstance
	if err := s.DB.WithContext(ctx).Unscoped().Preload("Task").First(&inst, "id = ?", instanceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("fetch instance: %w", err)
	}
	if inst.Task == nil || inst.Task.TeamID == nil {
		return nil, ErrNotTeamMember
	}
	member, err := isTeamMember(s.DB.WithContext(ctx), userID, *inst.Task.TeamID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotTeamMember
	}
	if inst.Completed || inst.DeletedAt.Valid {
		return nil, ErrInstanceClosed
	}

	var completion *models.TaskInstanceCompletion
	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.TaskInstance
		if err := forUpdate(tx).First(&locked, "id = ?", inst.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Deleted between the precondition check and the lock.
				return ErrInstanceClosed
			}
			return fmt.Errorf("lock instance: %w", err)
		}
		if locked.Completed {
			return ErrInstanceAlreadyCompleted
		}
		locked.Task = inst.Task

		completion = &models.TaskInstanceCompletion{
			Tracking: models.Tracking{
				ID:          uuid.NewString(),
				CreatedAt:   now,
				CreatedByID: &userID,
			},
			TaskInstanceID:         locked.ID,
			UserWhoCompletedTaskID: userID,
			PointsGranted:          locked.CurrentPrizeAt(now),
		}
		if err := tx.Create(completion).Error; err != nil {
			return fmt.Errorf("create completion: %w", err)
		}
		if err := tx.Model(&locked).Update("completed", true).Error; err != nil {
			return fmt.Errorf("mark instance completed: %w", err)
		}
		if inst.Task.IsRecurring && inst.Task.RefreshInterval != nil {
			next := &models.TaskInstance{
				Tracking: models.Tracking{
					ID:          uuid.NewString(),
					CreatedAt:   now,
					CreatedByID: &userID,
				},
				TaskID:     locked.TaskID,
				ActiveFrom: now.Add(*inst.Task.RefreshInterval),
			}
			if err := tx.Create(next).Error; err != nil {
				return fmt.Errorf("schedule next instance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("task instance completed",
		zap.String("instance_id", inst.ID),
		zap.String("user_id", userID),
		zap.Int("points_granted", completion.PointsGranted))

	if s.Events != nil {
		event := events.TaskCompletedEvent{
			CompletionID:  completion.ID,
			TaskID:        inst.Task.ID,
			TaskName:      inst.Task.Name,
			InstanceID:    inst.ID,
			UserID:        userID,
			PointsGranted: completion.PointsGranted,
			CompletedAt:   now,
		}
		if inst.Task.TeamID != nil {
			event.TeamID = *inst.Task.TeamID
		}
		if err := s.Events.PublishTaskCompleted(ctx, event); err != nil {
			logger.Warn("failed to publish task.completed event", zap.Error(err))
		}
	}
	return completion, nil
}

// RevertCompletion soft-deletes the completion and unwinds the instance
// timeline. Exactly one of three cases applies, in priority order:
//
//   - A: a later instance of the task was already completed — the reverted
//     instance is stale, soft-delete it outright;
//   - B: a pending instance exists — soft-delete the reverted instance and
//     slide the earliest pending instance back to its active_from;
//   - C: neither — flip the instance back to pending.
func (s *TaskService) RevertCompletion(ctx context.Context, completionID string) error {
	var comp models.TaskInstanceCompletion
	if err := s.DB.WithContext(ctx).Unscoped().First(&comp, "id = ?", completionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCompletionNotFound
		}
		return fmt.Errorf("fetch completion: %w", err)
	}
	if comp.DeletedAt.Valid {
		return ErrAlreadyDeleted
	}

	now := s.now()
	var ti models.TaskInstance
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// PointsGranted stays untouched: reverted completions keep their
		// historical value and only drop out of totals via deleted_at.
		if err := softDeleteLocked(tx, &comp, now); err != nil {
			return err
		}

		if err := forUpdate(tx.Unscoped()).First(&ti, "id = ?", comp.TaskInstanceID).Error; err != nil {
			return fmt.Errorf("lock instance: %w", err)
		}

		var laterCompleted int64
		err := tx.Model(&models.TaskInstance{}).
			Where("task_id = ? AND completed = ? AND active_from > ?", ti.TaskID, true, ti.ActiveFrom).
			Count(&laterCompleted).Error
		if err != nil {
			return fmt.Errorf("scan timeline: %w", err)
		}
		if laterCompleted > 0 {
			// Case A: the timeline has moved past this instance; reverting
			// must not resurrect it.
			return softDeleteLocked(tx, &ti, now)
		}

		var pending models.TaskInstance
		err = forUpdate(tx).
			Where("task_id = ? AND completed = ?", ti.TaskID, false).
			Order("active_from").
			First(&pending).Error
		switch {
		case err == nil:
			// Case B: collapse the timeline onto the pending instance and
			// slide its due date back.
			if err := softDeleteLocked(tx, &ti, now); err != nil {
				return err
			}
			if err := tx.Model(&pending).Update("active_from", ti.ActiveFrom).Error; err != nil {
				return fmt.Errorf("rewrite pending instance: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Case C: the instance becomes the sole pending one again.
			if err := tx.Model(&ti).Update("completed", false).Error; err != nil {
				return fmt.Errorf("reopen instance: %w", err)
			}
		default:
			return fmt.Errorf("find pending instance: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("completion reverted",
		zap.String("completion_id", comp.ID),
		zap.String("instance_id", comp.TaskInstanceID))

	if s.Events != nil {
		event := events.CompletionRevertedEvent{
			CompletionID:  comp.ID,
			TaskID:        ti.TaskID,
			InstanceID:    comp.TaskInstanceID,
			UserID:        comp.UserWhoCompletedTaskID,
			PointsGranted: comp.PointsGranted,
			RevertedAt:    now,
		}
		if err := s.Events.PublishCompletionReverted(ctx, event); err != nil {
			logger.Warn("failed to publish completion.reverted event", zap.Error(err))
		}
	}
	return nil
}

// ListTasks returns the team's tasks, soft-deleted ones included unless
// onlyActive is set. A task counts as active when it is not deleted and has
// at least one active instance.
func (s *TaskService) ListTasks(ctx context.Context, teamID string, onlyActive bool) ([]models.Task, error) {
	q := s.DB.WithContext(ctx).Unscoped().Where("team_id = ?", teamID).Order("created_at")
	if onlyActive {
		q = s.DB.WithContext(ctx).
			Where("team_id = ?", teamID).
			Where(`EXISTS (
				SELECT 1 FROM task_instances
				WHERE task_instances.task_id = tasks.id
				  AND task_instances.deleted_at IS NULL
				  AND task_instances.completed = ?
				  AND task_instances.active_from <= ?)`, false, s.now()).
			Order("created_at")
	}
	var tasks []models.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListTaskInstances returns the instances of all tasks in the team.
func (s *TaskService) ListTaskInstances(ctx context.Context, teamID string, onlyActive bool) ([]models.TaskInstance, error) {
	q := s.DB.WithContext(ctx).Unscoped().
		Joins("JOIN tasks ON tasks.id = task_instances.task_id").
		Where("tasks.team_id = ?", teamID).
		Order("task_instances.active_from")
	if onlyActive {
		q = q.Where(
			"task_instances.deleted_at IS NULL AND task_instances.completed = ? AND task_instances.active_from <= ? AND tasks.deleted_at IS NULL",
			false, s.now())
	}
	var instances []models.TaskInstance
	if err := q.Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("list task instances: %w", err)
	}
	return instances, nil
}

// InstancesForTask returns the instances of a single task.
func (s *TaskService) InstancesForTask(ctx context.Context, taskID string, onlyActive bool) ([]models.TaskInstance, error) {
	q := s.DB.WithContext(ctx).Unscoped().
		Joins("JOIN tasks ON tasks.id = task_instances.task_id").
		Where("task_instances.task_id = ?", taskID).
		Order("task_instances.active_from")
	if onlyActive {
		q = q.Where(
			"task_instances.deleted_at IS NULL AND task_instances.completed = ? AND task_instances.active_from <= ? AND tasks.deleted_at IS NULL",
			false, s.now())
	}
	var instances []models.TaskInstance
	if err := q.Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("list instances for task: %w", err)
	}
	return instances, nil
}

// ListCompletions returns the team's completion history, newest first.
// Reverted completions are included unless onlyActive is set.
func (s *TaskService) ListCompletions(ctx context.Context, teamID string, onlyActive bool) ([]models.TaskInstanceCompletion, error) {
	q := s.DB.WithContext(ctx).Unscoped().
		Joins("JOIN task_instances ON task_instances.id = task_instance_completions.task_instance_id").
		Joins("JOIN tasks ON tasks.id = task_instances.task_id").
		Where("tasks.team_id = ?", teamID).
		Order("task_instance_completions.created_at DESC")
	if onlyActive {
		q = q.Where("task_instance_completions.deleted_at IS NULL")
	}
	var completions []models.TaskInstanceCompletion
	if err := q.Find(&completions).Error; err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return completions, nil
}
