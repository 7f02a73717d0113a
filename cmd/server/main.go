package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anoa.com/memberclub/internal/bootstrap"
	"anoa.com/memberclub/internal/config"
	"anoa.com/memberclub/internal/jobs"
	"anoa.com/memberclub/internal/middleware"
	"anoa.com/memberclub/internal/server"
	"anoa.com/memberclub/pkg/database"
	"anoa.com/memberclub/pkg/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Invite-only membership community backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and seed default quests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := setup()
			if err != nil {
				return err
			}
			return migrate(cfg, db, log)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild leaderboard stats from the ledger once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := setup()
			if err != nil {
				return err
			}
			srv, err := server.NewServer(cfg, db, nil, log, server.Dependencies{})
			if err != nil {
				return err
			}
			return srv.Scheduler().RunByName(cmd.Context(), jobs.ReconcileJobName)
		},
	})

	var (
		memberID string
		email    string
		ttl      time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an identity token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AppEnv == "production" {
				return fmt.Errorf("token minting is disabled in production")
			}
			id, err := uuid.Parse(memberID)
			if err != nil {
				return fmt.Errorf("invalid --member-id: %w", err)
			}
			token, err := middleware.SignIdentityToken(cfg.JWTSecret, id, email, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&memberID, "member-id", uuid.NewString(), "Member id to put in the subject claim")
	tokenCmd.Flags().StringVar(&email, "email", "dev@memberclub.local", "Verified email claim")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.AddCommand(tokenCmd)

	return cmd
}

func setup() (*config.Config, *logger.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}

func migrate(cfg *config.Config, db *gorm.DB, log *logger.Logger) error {
	if err := bootstrap.Migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err := bootstrap.SeedQuests(db); err != nil {
		return fmt.Errorf("failed to seed quests: %w", err)
	}
	if cfg.AppEnv == "development" {
		if err := bootstrap.SeedAdminMember(db, log); err != nil {
			return fmt.Errorf("failed to seed admin member: %w", err)
		}
	}
	log.Info("✅ migrations applied")
	return nil
}

func serve(ctx context.Context) error {
	cfg, log, db, err := setup()
	if err != nil {
		return err
	}
	if err := migrate(cfg, db, log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		// Rate limits and live pushes degrade; everything else works on Postgres alone.
		log.WithError(err).Warn("redis unavailable, continuing without it")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	srv, err := server.NewServer(cfg, db, redisClient, log, server.Dependencies{})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
