package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	jqecho "github.com/flowkit/jobqueue/pkg/fx/echo"
	"github.com/flowkit/jobqueue/pkg/fx/metricsroute"
	jqrepo "github.com/flowkit/jobqueue/pkg/fx/repo"
	jqsupervisor "github.com/flowkit/jobqueue/pkg/fx/supervisor"
	jqtelemetry "github.com/flowkit/jobqueue/pkg/fx/telemetry"
	"github.com/flowkit/jobqueue/pkg/config"
	"github.com/flowkit/jobqueue/pkg/health"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the job queue daemon",
	Args:  cobra.NoArgs,
	RunE:  doServe,
}

func init() {
	serveCmd.Flags().String("host", config.DefaultServerConfig().Host, "Host the health/metrics server binds to")
	cobra.CheckErr(viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host")))

	serveCmd.Flags().Uint("port", config.DefaultServerConfig().Port, "Port the health/metrics server binds to")
	cobra.CheckErr(viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port")))

	serveCmd.Flags().String("repo-driver", config.DefaultRepositoryConfig().Driver, "Persistence backend: memory, sqlite, or postgres")
	cobra.CheckErr(viper.BindPFlag("repository.driver", serveCmd.Flags().Lookup("repo-driver")))

	serveCmd.Flags().String("repo-dsn", "", "DSN for the sqlite/postgres backend")
	cobra.CheckErr(viper.BindPFlag("repository.dsn", serveCmd.Flags().Lookup("repo-dsn")))
}

func doServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fxApp := fx.New(
		fx.Supply(cfg),
		jqtelemetry.Module,
		jqrepo.Module,
		jqsupervisor.Module,
		jqecho.Module,
		health.Module,
		metricsroute.Module,
	)
	if err := fxApp.Err(); err != nil {
		return err
	}
	if err := fxApp.Start(ctx); err != nil {
		return fmt.Errorf("starting fx app: %w", err)
	}

	log.Infof("jobflowd listening on %s", cfg.Server.Addr())
	<-fxApp.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		return fmt.Errorf("stopping fx app: %w", err)
	}
	return nil
}
