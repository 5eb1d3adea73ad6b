package services

import (
	"context"
	"testing"
	"time"

	"github.com/diewo77/taskflow/auth"
	"github.com/diewo77/taskflow/internal/db"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/internal/storage"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// One in-memory database per test.
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(conn))
	auth.SetHashCost(bcrypt.MinCost)
	return conn
}

// fixture is one tenant with an admin, a manager leading team "Eng" with bob
// in it, a user outside every team, and a second tenant.
type fixture struct {
	svc     *Services
	db      *gorm.DB
	ctx     context.Context
	admin   models.Actor
	manager models.Actor
	bob     models.Actor
	dave    models.Actor
	other   models.Actor
	team    *models.Team
}

func register(t *testing.T, svc *Services, name, email, company, slug string) models.Actor {
	t.Helper()
	u, err := svc.Tenants.Register(context.Background(), RegisterInput{
		Name: name, Email: email, Company: company, CompanySlug: slug, Password: "secret123",
	})
	require.NoError(t, err)
	return models.ActorFor(u)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := setupTestDB(t)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	svc := New(conn, nil, Options{Store: store, MaxUploadBytes: 1024, Location: time.UTC})
	ctx := context.Background()

	f := &fixture{svc: svc, db: conn, ctx: ctx}
	f.admin = register(t, svc, "Alice", "alice@acme.test", "Acme", "acme-co")
	f.bob = register(t, svc, "Bob", "bob@acme.test", "Acme", "acme-co")
	carol := register(t, svc, "Carol", "carol@acme.test", "Acme", "acme-co")
	f.dave = register(t, svc, "Dave", "dave@acme.test", "Acme", "acme-co")
	f.other = register(t, svc, "Olga", "olga@other.test", "Other", "other-co")

	promoted, err := svc.Users.ChangeRole(ctx, f.admin, carol.UserID, "manager")
	require.NoError(t, err)
	f.manager = models.ActorFor(promoted)

	f.team, err = svc.Teams.CreateTeam(ctx, f.admin, "Eng")
	require.NoError(t, err)
	require.NoError(t, svc.Teams.AddMember(ctx, f.admin, f.team.ID, f.bob.UserID))
	require.NoError(t, svc.Teams.AddMember(ctx, f.admin, f.team.ID, f.manager.UserID))
	return f
}

func (f *fixture) createTask(t *testing.T, by models.Actor, assignee uint, title string) *models.Task {
	t.Helper()
	task, err := f.svc.Tasks.Create(f.ctx, by, CreateTaskInput{Title: title, AssigneeID: assignee, Priority: "high"})
	require.NoError(t, err)
	return task
}

func fixedClock(ts string) func() time.Time {
	tm, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return tm }
}
