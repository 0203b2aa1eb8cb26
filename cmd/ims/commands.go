package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jimyag/ims/internal/ims"
	"github.com/jimyag/ims/internal/ims/config"
	"github.com/jimyag/ims/internal/ims/repository"
	"github.com/jimyag/ims/internal/ims/service"
	"github.com/spf13/cobra"
)

// errIntegrityViolation 巡检发现损坏的历史链时返回，进程以非零状态退出
var errIntegrityViolation = errors.New("history integrity violation detected")

type rootOptions struct {
	configPath string
}

// load 加载配置，--config 为空时回退到 IMS_CONFIG
func (o *rootOptions) load() (*config.Config, error) {
	if o.configPath != "" {
		return config.Load(o.configPath)
	}
	return config.New()
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "ims",
		Short:         "Inference instance management service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config file (defaults to $IMS_CONFIG)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newVerifyHistoryCommand(opts))
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	server, err := ims.New(cfg)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	return server.Run(ctx)
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := ims.NewLogger(cfg)

			// repository.New 会执行迁移
			repo, err := repository.New(cfg.Database)
			if err != nil {
				return err
			}
			defer repo.Close()

			logger.Info().Str("dialect", string(repo.Dialect())).Msg("Database migrated successfully")
			return nil
		},
	}
}

func newVerifyHistoryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-history",
		Short: "Check the history chain of every instance once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := ims.NewLogger(cfg)

			repo, err := repository.New(cfg.Database)
			if err != nil {
				return err
			}
			defer repo.Close()

			sweeper, err := service.NewIntegritySweeper(service.NewHistoryService(repo), "")
			if err != nil {
				return err
			}
			report, err := sweeper.Sweep(logger.WithContext(cmd.Context()))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "checked %d instances, %d invalid\n", report.Checked, len(report.Invalid))
			for _, id := range report.Invalid {
				fmt.Fprintf(cmd.OutOrStdout(), "invalid history chain: instance %d\n", id)
			}
			if len(report.Invalid) > 0 {
				return errIntegrityViolation
			}
			return nil
		},
	}
}
