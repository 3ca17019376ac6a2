package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	dbembed "github.com/storepilotai/storepilot/db"
	"github.com/storepilotai/storepilot/internal/boot"
	"github.com/storepilotai/storepilot/internal/config"
	"github.com/storepilotai/storepilot/internal/db"
	"github.com/storepilotai/storepilot/internal/executor"
	"github.com/storepilotai/storepilot/internal/generator"
	"github.com/storepilotai/storepilot/internal/handlers"
	"github.com/storepilotai/storepilot/internal/history"
	"github.com/storepilotai/storepilot/internal/images"
	"github.com/storepilotai/storepilot/internal/logger"
	"github.com/storepilotai/storepilot/internal/replay"
	"github.com/storepilotai/storepilot/internal/server"
	"github.com/storepilotai/storepilot/internal/session"
	"github.com/storepilotai/storepilot/internal/shopify"
	"github.com/storepilotai/storepilot/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "storepilot",
	Short: "Storepilot turns plain-language prompts into validated store actions",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|version|force N]",
	Short: "Apply or roll back database migrations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level, cfg.Log.Format)

		migrationsFS, err := fs.Sub(dbembed.MigrationsFS, "migrations")
		if err != nil {
			return fmt.Errorf("migrations fs: %w", err)
		}
		return db.RunMigrate(logger.L, cfg.Postgres, migrationsFS, args[0], args[1:])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the server version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Storepilot %s\n", version.GetInfo())
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			boot.ProvideRuntimeConfig,
			provideLogger,

			provideHistoryStore,
			provideSessionService,
			provideGenerator,
			fx.Annotate(provideImageService, fx.As(new(images.Acquirer))),
			executor.NewService,
			replay.NewService,
			provideClientFactory,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(handlers.NewExecuteHandler),
			provideServerHandler(handlers.NewStoreHandler),
			provideServerHandler(provideHistoryHandler),

			fx.Annotate(provideServer, fx.ParamTags("", "", `group:"server_handlers"`)),
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideHistoryStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (history.Store, error) {
	if cfg.History.Backend == "memory" {
		log.Warn("using in-memory history store, entries are lost on restart")
		return history.NewMemoryStore(cfg.History.Retention), nil
	}

	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return history.NewPostgresStore(log, conn), nil
}

func provideSessionService(log *slog.Logger, cfg config.Config, runtimeConfig *boot.RuntimeConfig) *session.Service {
	return session.NewService(log, runtimeConfig.ShopifyAPIKey, runtimeConfig.ShopifyAPISecret,
		cfg.Shopify.ScopeList(), cfg.Shopify.RedirectURL)
}

func provideGenerator(log *slog.Logger, cfg config.Config, runtimeConfig *boot.RuntimeConfig) *generator.Service {
	return generator.NewService(log, runtimeConfig.OpenRouterAPIKey, cfg.OpenRouter.Model, cfg.OpenRouter.BaseURL)
}

func provideImageService(log *slog.Logger, cfg config.Config, runtimeConfig *boot.RuntimeConfig) *images.Service {
	return images.NewService(log, runtimeConfig.HuggingFaceAPIKey, cfg.HuggingFace.Model, cfg.HuggingFace.BaseURL)
}

func provideClientFactory(log *slog.Logger) handlers.StoreClientFactory {
	return func(sess session.Session) shopify.StoreClient {
		return shopify.NewClient(log, sess.Shop, sess.AccessToken)
	}
}

func provideAuthHandler(log *slog.Logger, sessions *session.Service, runtimeConfig *boot.RuntimeConfig) *handlers.AuthHandler {
	return handlers.NewAuthHandler(log, sessions, runtimeConfig.JwtSecret, runtimeConfig.JwtExpiresIn)
}

func provideHistoryHandler(log *slog.Logger, store history.Store, replayService *replay.Service, sessions *session.Service, clients handlers.StoreClientFactory) *handlers.HistoryHandler {
	return handlers.NewHistoryHandler(log, store, replayService, sessions, clients)
}

func provideServer(log *slog.Logger, runtimeConfig *boot.RuntimeConfig, serverHandlers []server.Handler) *server.Server {
	return server.NewServer(log, runtimeConfig.ServerAddr, runtimeConfig.JwtSecret, serverHandlers...)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting Storepilot %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil { // block until server is stopped
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown() // shutdown the application if the server fails to start
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop(ctx)
		},
	})
}
