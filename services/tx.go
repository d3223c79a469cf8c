package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"household-task-system/models"
)

// forUpdate adds SELECT ... FOR UPDATE on dialects that support it. SQLite,
// used by the test suite, has no row locks; its single-writer transactions
// already serialize the operations the lock exists for.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// softDeleteLocked re-reads the record under a row lock inside the caller's
// transaction, rejects a repeated delete, then stamps deleted_at. The record
// must carry its primary key.
func softDeleteLocked(tx *gorm.DB, rec models.Tracked, now time.Time) error {
	tracking := rec.TrackingRef()
	if err := forUpdate(tx.Unscoped()).First(rec, "id = ?", tracking.ID).Error; err != nil {
		return fmt.Errorf("lock record for delete: %w", err)
	}
	if tracking.DeletedAt.Valid {
		return ErrAlreadyDeleted
	}
	if err := tx.Unscoped().Model(rec).Update("deleted_at", now).Error; err != nil {
		return fmt.Errorf("stamp deleted_at: %w", err)
	}
	tracking.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
	return nil
}

// isTeamMember checks membership through the join table.
func isTeamMember(tx *gorm.DB, userID, teamID string) (bool, error) {
	var n int64
	err := tx.Table("team_members").
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check team membership: %w", err)
	}
	return n > 0, nil
}
