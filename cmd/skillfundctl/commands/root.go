package commands

import (
	"context"

	"skillfund/config"
	pkgconfig "skillfund/pkg/config"
	"skillfund/pkg/db"
	"skillfund/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configDir string
	logLevel  string

	log  *zap.Logger
	pool *pgxpool.Pool
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "skillfundctl",
		Short:         "Operational commands for SkillFund",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logger.NewLogger("skillfundctl", logLevel)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if pool != nil {
				pool.Close()
				pool = nil
			}
			_ = log.Sync()
		},
	}

	root.PersistentFlags().StringVar(&configDir, "config", pkgconfig.GetEnv("CONFIG_DIR", "config"), "config directory")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level")

	root.AddCommand(migrateCmd(), outboxCmd())
	return root
}

func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// openDB loads the config and connects on first use.
func openDB(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, nil, err
	}
	if pool == nil {
		if pool, err = db.NewConnection(ctx, cfg.DB, log); err != nil {
			return nil, nil, err
		}
	}
	return cfg, pool, nil
}
