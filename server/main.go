package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	load := func() (Config, *slog.Logger, error) {
		cfg, err := loadConfig(v, cfgFile)
		if err != nil {
			return Config{}, nil, err
		}
		log := newLogger(cfg)
		slog.SetDefault(log)
		return cfg, log, nil
	}

	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := load()
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg, log)
	}

	root := &cobra.Command{
		Use:          "taskboard",
		Short:        "Collaborative task-board API server",
		SilenceUsage: true,
		RunE:         serve,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("addr", "", "listen address (default :8080)")
	root.PersistentFlags().String("database-url", "", "Postgres connection string")
	_ = v.BindPFlag("addr", root.PersistentFlags().Lookup("addr"))
	_ = v.BindPFlag("database_url", root.PersistentFlags().Lookup("database-url"))

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  serve,
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			if err := migrateUp(cfg.DatabaseURL); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "backfill-slugs",
		Short: "Assign slugs to boards that have none and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			pool, err := openPool(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			n, err := NewStore(pool).BackfillSlugs(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("slugs backfilled", "boards", n)
			return nil
		},
	})
	return root
}

func runServe(ctx context.Context, cfg Config, log *slog.Logger) error {
	if err := cfg.validateServe(); err != nil {
		return err
	}
	if cfg.MigrateOnStart {
		if err := migrateUp(cfg.DatabaseURL); err != nil {
			return err
		}
	}
	pool, err := openPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := NewStore(pool)
	if n, err := store.BackfillSlugs(ctx); err != nil {
		log.Error("slug backfill", "err", err)
	} else if n > 0 {
		log.Info("slugs backfilled", "boards", n)
	}

	a := newAPI(store, log, cfg)
	srv := &http.Server{Addr: cfg.Addr, Handler: a.handler(),
		ReadTimeout: 15 * time.Second, ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout: 30 * time.Second, IdleTimeout: 120 * time.Second}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-sigCtx.Done():
	}
	log.Info("shutting down")
	ctxSh, cancelSh := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSh()
	if err := srv.Shutdown(ctxSh); err != nil {
		log.Error("shutdown", "err", err)
	}
	return nil
}
