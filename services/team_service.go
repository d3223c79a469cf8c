package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"household-task-system/logger"
	"household-task-system/models"
	"household-task-system/utils"
)

// TeamService manages teams and their member sets. Membership is the
// authorization boundary for everything the lifecycle engine does.
type TeamService struct {
	DB *gorm.DB

	now func() time.Time
}

func NewTeamService(db *gorm.DB) *TeamService {
	return &TeamService{DB: db, now: time.Now}
}

// CreateTeam persists a password-gated team. The creator is recorded as
// created_by but is not added to the member set.
func (s *TeamService) CreateTeam(ctx context.Context, name, password, creatorID string) (*models.Team, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: team name must not be empty", ErrValidation)
	}
	if len(name) > 50 {
		return nil, fmt.Errorf("%w: team name must be at most 50 characters", ErrValidation)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: team password must not be empty", ErrValidation)
	}

	hash, err := utils.HashPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash team password: %w", err)
	}

	var createdBy *string
	if creatorID != "" {
		createdBy = &creatorID
	}
	team := &models.Team{
		Tracking: models.Tracking{
			ID:          uuid.NewString(),
			CreatedAt:   s.now(),
			CreatedByID: createdBy,
		},
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.DB.WithContext(ctx).Create(team).Error; err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}

	logger.Info("team created", zap.String("team_id", team.ID), zap.String("name", team.Name))
	return team, nil
}

// JoinTeam adds the user to the member set after a password check.
func (s *TeamService) JoinTeam(ctx context.Context, teamID, userID, password string) (*models.Team, error) {
	var team models.Team
	if err := s.DB.WithContext(ctx).First(&team, "id = ?", teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("fetch team: %w", err)
	}

	member, err := isTeamMember(s.DB.WithContext(ctx), userID, teamID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyMember, team.Name)
	}
	if !utils.VerifyPassword(team.PasswordHash, password) {
		return nil, fmt.Errorf("%w: %s", ErrWrongPassword, team.Name)
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	if err := s.DB.WithContext(ctx).Model(&team).Association("Members").Append(&user); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}

	logger.Info("user joined team", zap.String("team_id", team.ID), zap.String("user_id", userID))
	return &team, nil
}

// LeaveTeam removes the user from the member set.
func (s *TeamService) LeaveTeam(ctx context.Context, teamID, userID string) (*models.Team, error) {
	var team models.Team
	if err := s.DB.WithContext(ctx).First(&team, "id = ?", teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("fetch team: %w", err)
	}

	member, err := isTeamMember(s.DB.WithContext(ctx), userID, teamID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: %s", ErrNotTeamMember, team.Name)
	}

	if err := s.DB.WithContext(ctx).
		Model(&team).
		Association("Members").
		Delete(&models.User{ID: userID}); err != nil {
		return nil, fmt.Errorf("remove member: %w", err)
	}

	logger.Info("user left team", zap.String("team_id", team.ID), zap.String("user_id", userID))
	return &team, nil
}

// IsMember reports whether the user belongs to the team.
func (s *TeamService) IsMember(ctx context.Context, userID, teamID string) (bool, error) {
	return isTeamMember(s.DB.WithContext(ctx), userID, teamID)
}

// ListTeams returns all teams that have not been deleted.
func (s *TeamService) ListTeams(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	if err := s.DB.WithContext(ctx).Order("created_at").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return teams, nil
}

// TeamsForUser returns the active teams the user is a member of.
func (s *TeamService) TeamsForUser(ctx context.Context, userID string) ([]models.Team, error) {
	var teams []models.Team
	err := s.DB.WithContext(ctx).
		Joins("JOIN team_members ON team_members.team_id = teams.id").
		Where("team_members.user_id = ?", userID).
		Order("teams.created_at").
		Find(&teams).Error
	if err != nil {
		return nil, fmt.Errorf("list teams for user: %w", err)
	}
	return teams, nil
}

// DeleteTeam soft-deletes the team. Tasks keep pointing at the deleted row;
// the SET NULL policy only applies to hard deletes at the storage layer.
func (s *TeamService) DeleteTeam(ctx context.Context, teamID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team := &models.Team{Tracking: models.Tracking{ID: teamID}}
		return softDeleteLocked(tx, team, s.now())
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTeamNotFound
	}
	if err != nil {
		return err
	}
	logger.Info("team deleted", zap.String("team_id", teamID))
	return nil
}
