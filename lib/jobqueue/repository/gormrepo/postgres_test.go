package gormrepo

import (
	"context"
	"os"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"

	"github.com/flowkit/jobqueue/lib/jobqueue/job"
)

var (
	pgContainer *tcpostgres.PostgresContainer
	pgConnStr   string
	pgOnce      sync.Once
	pgErr       error
)

// setupPostgresContainer starts a disposable postgres instance the first
// time it's called; subsequent calls reuse the same container for the rest
// of the package's test run.
func setupPostgresContainer(ctx context.Context) error {
	pgOnce.Do(func() {
		if runtime.GOOS == "darwin" {
			return
		}
		if os.Getenv("JOBFLOWD_SKIP_POSTGRES_TESTS") == "1" {
			return
		}

		pgContainer, pgErr = tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("jobqueue_test"),
			tcpostgres.WithUsername("test"),
			tcpostgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2)),
		)
		if pgErr != nil {
			return
		}
		pgConnStr, pgErr = pgContainer.ConnectionString(ctx, "sslmode=disable")
	})
	return pgErr
}

func postgresAvailable() bool {
	return pgConnStr != "" && pgErr == nil
}

// newPostgresRepository skips the calling test if no container could be
// started (e.g. in a sandboxed CI runner with no docker daemon).
func newPostgresRepository(t *testing.T) *Repository {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := setupPostgresContainer(ctx); err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	if !postgresAvailable() {
		t.Skip("postgres container unavailable")
	}

	db, err := Open(gormpostgres.Open(pgConnStr))
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_, _ = sqlDB.Exec(`TRUNCATE TABLE job_history, job, queue CASCADE`)
			_ = sqlDB.Close()
		}
	})
	return New(db)
}

// TestGormPostgresCreateAndArchiveJob exercises queue creation, job
// create/get, and archive-then-get against a real postgres dialect.
func TestGormPostgresCreateAndArchiveJob(t *testing.T) {
	r := newPostgresRepository(t)
	ctx := context.Background()

	q := &job.Queue{ID: job.NewQueueID(), Name: "pg-queue", State: job.QueueRunning, Config: job.DefaultQueueConfig()}
	require.NoError(t, r.CreateQueue(ctx, q))

	j := job.New(q.ID, "t", []byte(`{"n":1}`), job.PriorityNormal, 0, 30, []string{"pg"}, time.Now())
	require.NoError(t, r.CreateJob(ctx, j))

	got, err := r.GetJob(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, j.JobType, got.JobType)

	j.Status = job.Completed(time.Now(), time.Now(), job.Result{Summary: "ok"})
	require.NoError(t, r.ArchiveJob(ctx, j))

	archived, err := r.GetJob(ctx, j.ID)
	require.NoError(t, err)
	require.Equal(t, job.StatusCompleted, archived.Status.Kind)
}
