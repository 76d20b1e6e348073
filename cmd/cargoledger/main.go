package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/clock"
	"github.com/railzwaylabs/cargoledger/internal/config"
	"github.com/railzwaylabs/cargoledger/internal/customer"
	"github.com/railzwaylabs/cargoledger/internal/invoice"
	"github.com/railzwaylabs/cargoledger/internal/job"
	"github.com/railzwaylabs/cargoledger/internal/lock"
	"github.com/railzwaylabs/cargoledger/internal/migration"
	"github.com/railzwaylabs/cargoledger/internal/observability"
	"github.com/railzwaylabs/cargoledger/internal/payment"
	"github.com/railzwaylabs/cargoledger/internal/product"
	"github.com/railzwaylabs/cargoledger/internal/quote"
	"github.com/railzwaylabs/cargoledger/internal/rating"
	"github.com/railzwaylabs/cargoledger/internal/recompute"
	"github.com/railzwaylabs/cargoledger/internal/redis"
	"github.com/railzwaylabs/cargoledger/internal/server"
	"github.com/railzwaylabs/cargoledger/internal/supplier"
	"github.com/railzwaylabs/cargoledger/internal/waybill"
	"github.com/railzwaylabs/cargoledger/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "cargoledger",
		Short:         "Freight quote resolution and billing engine",
		Version:       readVersionFromEnv(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to a YAML config file")
	root.AddCommand(
		newMigrateCmd(flags),
		newServeCmd(flags),
		newWorkerCmd(flags),
		newRecomputeCmd(flags),
		newGenerateInvoicesCmd(flags),
	)
	return root
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and activate schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(flags.configFile)
		},
	}
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and job workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				engineModules(flags.configFile),
				server.Module,
				fx.Invoke(enforceSchemaGate),
				fx.Invoke(job.StartRunner),
				fx.Invoke(watchConfig),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func newWorkerCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run job workers without the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				engineModules(flags.configFile),
				fx.Invoke(enforceSchemaGate),
				fx.Invoke(job.StartRunner),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func runMigrate(configFile string) error {
	app := fx.New(
		config.Module,
		config.WithFile(configFile),
		observability.Module,
		db.Module,
		migration.Run,
		fx.WithLogger(newFxLogger),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

// engineModules wires every domain service. Commands add their own entry
// points on top.
func engineModules(configFile string) fx.Option {
	return fx.Options(
		config.Module,
		config.WithFile(configFile),
		observability.Module,
		fx.Provide(newSnowflakeNode),
		db.Module,
		redis.Module,
		lock.Module,
		clock.Module,
		migration.Module,
		product.Module,
		customer.Module,
		supplier.Module,
		quote.Module,
		waybill.Module,
		rating.Module,
		recompute.Module,
		invoice.Module,
		payment.Module,
		job.Module,
		fx.WithLogger(newFxLogger),
	)
}

// oneShot starts the engine without workers or HTTP, runs fn and stops.
func oneShot(configFile string, timeout time.Duration, fn any) error {
	app := fx.New(
		engineModules(configFile),
		fx.Invoke(enforceSchemaGate),
		fx.Invoke(fn),
	)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(context.Background())
}

func newSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.Node.ID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.Node.ID, err)
	}
	return node, nil
}

func newFxLogger(log *zap.Logger) fxevent.Logger {
	l := &fxevent.ZapLogger{Logger: log.Named("fx")}
	l.UseLogLevel(zap.DebugLevel)
	return l
}

func enforceSchemaGate(lc fx.Lifecycle, gate *migration.Gate) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := gate.MustBeActive(ctx); err != nil {
				return fmt.Errorf("database schema not ready, run `cargoledger migrate`: %w", err)
			}
			return nil
		},
	})
}

func watchConfig(opts config.Options, log *zap.Logger) {
	config.Watch(opts, func(_ config.Config, err error) {
		if err != nil {
			log.Warn("config file reload failed", zap.Error(err))
			return
		}
		log.Info("config file changed, restart to apply", zap.String("file", opts.File))
	})
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
