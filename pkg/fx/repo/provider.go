// Package repo provides the repository.Repository implementation selected
// by config.RepositoryConfig, picking a driver at wiring time.
package repo

import (
	"fmt"

	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"

	"github.com/flowkit/jobqueue/lib/jobqueue/repository"
	"github.com/flowkit/jobqueue/lib/jobqueue/repository/gormrepo"
	"github.com/flowkit/jobqueue/lib/jobqueue/repository/memory"
	"github.com/flowkit/jobqueue/pkg/config"
)

var Module = fx.Module("repo",
	fx.Provide(Provide),
)

// Provide opens the configured backend and wraps it as a
// repository.Repository.
func Provide(cfg config.AppConfig) (repository.Repository, error) {
	switch cfg.Repository.Driver {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		db, err := gormrepo.Open(sqlite.Open(cfg.Repository.DSN))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite repository: %w", err)
		}
		return gormrepo.New(db), nil
	case "postgres":
		db, err := gormrepo.Open(postgres.Open(cfg.Repository.DSN))
		if err != nil {
			return nil, fmt.Errorf("opening postgres repository: %w", err)
		}
		return gormrepo.New(db), nil
	default:
		return nil, fmt.Errorf("unknown repository driver %q", cfg.Repository.Driver)
	}
}
