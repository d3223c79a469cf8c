package services

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"household-task-system/events"
	"household-task-system/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One in-memory database per test; a second connection would see an
	// empty schema.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.Task{},
		&models.TaskInstance{},
		&models.TaskInstanceCompletion{},
	))
	return db
}

type recordingPublisher struct {
	completed []events.TaskCompletedEvent
	reverted  []events.CompletionRevertedEvent
}

func (p *recordingPublisher) PublishTaskCompleted(_ context.Context, event events.TaskCompletedEvent) error {
	p.completed = append(p.completed, event)
	return nil
}

func (p *recordingPublisher) PublishCompletionReverted(_ context.Context, event events.CompletionRevertedEvent) error {
	p.reverted = append(p.reverted, event)
	return nil
}

// fixture wires all services against one test database with a controllable
// clock.
type fixture struct {
	t      *testing.T
	db     *gorm.DB
	teams  *TeamService
	tasks  *TaskService
	points *PointsService
	pub    *recordingPublisher
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:   t,
		db:  newTestDB(t),
		now: time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC),
		pub: &recordingPublisher{},
	}
	f.teams = NewTeamService(f.db)
	f.tasks = NewTaskService(f.db)
	f.points = NewPointsService(f.db)
	f.tasks.Events = f.pub
	clock := func() time.Time { return f.now }
	f.teams.now = clock
	f.tasks.now = clock
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) user(name string) *models.User {
	f.t.Helper()
	u := &models.User{ID: uuid.NewString(), Username: name, Email: name + "@example.com"}
	require.NoError(f.t, f.db.Create(u).Error)
	return u
}

// teamWith creates a team owned by a fresh creator and joins the given users.
func (f *fixture) teamWith(name string, members ...*models.User) *models.Team {
	f.t.Helper()
	creator := f.user(name + "-creator")
	team, err := f.teams.CreateTeam(context.Background(), name, "secret", creator.ID)
	require.NoError(f.t, err)
	for _, m := range members {
		_, err := f.teams.JoinTeam(context.Background(), team.ID, m.ID, "secret")
		require.NoError(f.t, err)
	}
	return team
}

func (f *fixture) createTask(team *models.Team, owner *models.User, base int, interval *time.Duration, recurring bool) *models.Task {
	f.t.Helper()
	task, err := f.tasks.CreateTask(context.Background(), CreateTaskInput{
		Name:            "dishes",
		Description:     "do the dishes",
		TeamID:          team.ID,
		BasePointsPrize: base,
		RefreshInterval: interval,
		IsRecurring:     recurring,
		CreatedByID:     owner.ID,
	})
	require.NoError(f.t, err)
	return task
}

// pendingInstance returns the earliest open instance of the task.
func (f *fixture) pendingInstance(taskID string) *models.TaskInstance {
	f.t.Helper()
	var inst models.TaskInstance
	require.NoError(f.t, f.db.
		Where("task_id = ? AND completed = ?", taskID, false).
		Order("active_from").
		First(&inst).Error)
	return &inst
}

// instances returns every instance of the task, soft-deleted ones included.
func (f *fixture) instances(taskID string) []models.TaskInstance {
	f.t.Helper()
	var list []models.TaskInstance
	require.NoError(f.t, f.db.Unscoped().
		Where("task_id = ?", taskID).
		Order("created_at").
		Find(&list).Error)
	return list
}

func (f *fixture) pendingCount(taskID string) int {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(&models.TaskInstance{}).
		Where("task_id = ? AND completed = ?", taskID, false).
		Count(&n).Error)
	return int(n)
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}
