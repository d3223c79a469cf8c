package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"household-task-system/models"
)

func TestCountUserPoints(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	bob := f.user("bob")
	team := f.teamWith("kitchen", alice, bob)
	interval := 24 * time.Hour
	task := f.createTask(team, alice, 3, &interval, true)
	ctx := context.Background()

	_, err := f.tasks.SubmitCompletion(ctx, f.pendingInstance(task.ID).ID, alice.ID)
	require.NoError(t, err)
	f.advance(2 * interval)
	_, err = f.tasks.SubmitCompletion(ctx, f.pendingInstance(task.ID).ID, alice.ID)
	require.NoError(t, err)

	points, err := f.points.CountUserPoints(ctx, alice.ID, team.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, points)

	points, err = f.points.CountUserPoints(ctx, bob.ID, team.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, points, "no completions sums to zero, not an error")
}

func TestCountUserPointsBoundsAreInclusive(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	team := f.teamWith("kitchen", alice)
	interval := 24 * time.Hour
	task := f.createTask(team, alice, 1, &interval, true)
	ctx := context.Background()

	first := f.now
	_, err := f.tasks.SubmitCompletion(ctx, f.pendingInstance(task.ID).ID, alice.ID)
	require.NoError(t, err)

	f.advance(2 * interval)
	second := f.now
	_, err = f.tasks.SubmitCompletion(ctx, f.pendingInstance(task.ID).ID, alice.ID)
	require.NoError(t, err)

	cases := []struct {
		name     string
		from, to *time.Time
		want     int
	}{
		{"open range", nil, nil, 2},
		{"from second", &second, nil, 1},
		{"to first", nil, &first, 1},
		{"exact boundaries", &first, &second, 2},
		{"after everything", timePtr(second.Add(time.Minute)), nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			points, err := f.points.CountUserPoints(ctx, alice.ID, team.ID, tc.from, tc.to)
			require.NoError(t, err)
			assert.Equal(t, tc.want, points)
		})
	}
}

func timePtr(v time.Time) *time.Time { return &v }

// A completion only counts while its completion row, instance and task are
// all undeleted. A merely completed instance still counts: completion is the
// normal end state, not a removal.
func TestCountUserPointsDeletionFilter(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	team := f.teamWith("kitchen", alice)
	ctx := context.Background()

	kept := f.createTask(team, alice, 2, nil, false)
	losesInstance := f.createTask(team, alice, 4, nil, false)
	losesTask := f.createTask(team, alice, 8, nil, false)

	for _, task := range []*models.Task{kept, losesInstance, losesTask} {
		_, err := f.tasks.SubmitCompletion(ctx, f.pendingInstance(task.ID).ID, alice.ID)
		require.NoError(t, err)
	}

	points, err := f.points.CountUserPoints(ctx, alice.ID, team.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 14, points, "completed instances count in full")

	require.NoError(t, f.db.Model(&models.TaskInstance{}).
		Where("task_id = ?", losesInstance.ID).
		Update("deleted_at", f.now).Error)
	require.NoError(t, f.tasks.DeleteTask(ctx, losesTask.ID))

	points, err = f.points.CountUserPoints(ctx, alice.ID, team.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, points)
}

func TestCountTeamMembersPoints(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")
	bob := f.user("bob")
	team := f.teamWith("kitchen", alice, bob)
	task := f.createTask(team, alice, 3, nil, false)
	ctx := context.Background()

	_, err := f.tasks.SubmitCompletion(ctx, f.pendingInstance(task.ID).ID, alice.ID)
	require.NoError(t, err)

	board, err := f.points.CountTeamMembersPoints(ctx, team.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, board, 2, "zero-point members are listed too")

	byUser := map[string]int{}
	for _, entry := range board {
		byUser[entry.Member.ID] = entry.Points
	}
	assert.Equal(t, 3, byUser[alice.ID])
	assert.Equal(t, 0, byUser[bob.ID])

	// Deterministic order by member primary key.
	for i := 1; i < len(board); i++ {
		assert.Less(t, board[i-1].Member.ID, board[i].Member.ID)
	}

	_, err = f.points.CountTeamMembersPoints(ctx, "ffffffff-0000-0000-0000-000000000000", nil, nil)
	assert.ErrorIs(t, err, ErrTeamNotFound)
}
