package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/contextcommerce/contextcommerce/server/internal/analysis"
	"github.com/contextcommerce/contextcommerce/server/internal/api"
	"github.com/contextcommerce/contextcommerce/server/internal/auth"
	"github.com/contextcommerce/contextcommerce/server/internal/catalog"
	"github.com/contextcommerce/contextcommerce/server/internal/config"
	"github.com/contextcommerce/contextcommerce/server/internal/metrics"
	"github.com/contextcommerce/contextcommerce/server/internal/naver"
	"github.com/contextcommerce/contextcommerce/server/internal/receiver"
	"github.com/contextcommerce/contextcommerce/server/internal/store"
	"github.com/contextcommerce/contextcommerce/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

type flags struct {
	configPath string
	envFile    string
	uiDir      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "contextcommerce-server",
		Short:         "Shopping search proxy, catalog and event ingest for the contextual commerce demo",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd.Context(), f, cmd.Flags().Changed("config"))
			if err != nil {
				slog.Error("contextcommerce-server stopped", "err", err)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&f.configPath, "config", "config.yaml", "path to config file")
	cmd.Flags().StringVar(&f.envFile, "env-file", "", "env file with Naver credentials (default: .env.local, then .env)")
	cmd.Flags().StringVar(&f.uiDir, "ui-dir", "", "serve the pre-built UI from this directory (e.g. dist); leave empty to disable")
	return cmd
}

func run(parent context.Context, f flags, configExplicit bool) error {
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := config.LoadEnv(f.envFile); err != nil {
		return err
	}
	cfg, err := loadConfig(f.configPath, configExplicit)
	if err != nil {
		return err
	}
	sc := cfg.Server
	level.Set(sc.SlogLevel())

	slog.Info("config loaded",
		"http_port", sc.HTTPPort,
		"base_path", sc.BasePath,
		"storage", sc.Storage.Backend,
		"auth_mode", sc.Auth.Mode,
		"naver", sc.Naver.Enabled(),
	)
	if !sc.Naver.Enabled() {
		slog.Warn("naver credentials missing; /products serves the local catalog",
			"client_id_env", sc.Naver.ClientIDEnv, "client_secret_env", sc.Naver.ClientSecretEnv)
	}

	st, err := store.Open(store.Config{
		Backend:   sc.Storage.Backend,
		Path:      sc.Storage.Path,
		DSN:       sc.Storage.DSN(),
		Retention: sc.Storage.Retention,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	cat := catalog.NewSeeded()
	if sc.Catalog.SeedFile != "" {
		if err := cat.LoadSeedFile(sc.Catalog.SeedFile); err != nil {
			return err
		}
		slog.Info("catalog: loaded seed file", "path", sc.Catalog.SeedFile, "products", cat.Len())
	}

	m := metrics.New()
	rc, err := receiver.New(st, m, receiver.Options{
		MaxBatch:       sc.Events.MaxBatch,
		RequireConsent: sc.Events.RequireConsent,
	})
	if err != nil {
		return err
	}
	hub := ws.New(st, sc.Stream.Days, sc.Stream.Interval, m.StreamClients)

	opts := api.Options{
		Catalog: cat,
		Naver: naver.New(naver.Config{
			BaseURL:      sc.Naver.BaseURL,
			ClientID:     sc.Naver.ClientID(),
			ClientSecret: sc.Naver.ClientSecret(),
			Timeout:      sc.Naver.Timeout,
		}),
		Analyzer:      analysis.New(cat, sc.Analysis.MaxMatches, sc.Analysis.ContextChars),
		Store:         st,
		Metrics:       m,
		Events:        rc,
		Stream:        hub,
		Auth:          auth.APIKey(sc.Auth.Mode, sc.Auth.EffectiveHeader(), sc.Auth.Key()),
		BasePath:      sc.BasePath,
		AllowOrigin:   sc.CORS.AllowOrigin,
		AuthHeader:    sc.Auth.EffectiveHeader(),
		AnalyticsDays: sc.Stream.Days,
	}
	if f.uiDir != "" {
		opts.Fallback = spaHandler(f.uiDir)
		slog.Info("serving UI static files", "dir", f.uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", sc.HTTPPort),
		Handler:           api.New(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server listening", "port", sc.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("contextcommerce-server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if mem, ok := st.(*store.Memory); ok {
		g.Go(func() error {
			mem.Run(gctx)
			return nil
		})
	}

	if sc.Catalog.SeedFile != "" {
		g.Go(func() error {
			if err := cat.Watch(gctx, sc.Catalog.SeedFile); err != nil {
				slog.Error("catalog: watch disabled", "path", sc.Catalog.SeedFile, "err", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// loadConfig reads path. A missing default config file falls back to the
// built-in defaults; a missing file named with --config is an error.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			slog.Info("no config file found, using defaults", "path", path)
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

// spaHandler serves files from dir and falls back to index.html for unknown
// paths so client-side routing works.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	})
}
