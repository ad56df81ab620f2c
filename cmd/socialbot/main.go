package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/realaashishly/Social-Bot/internal/ai"
	"github.com/realaashishly/Social-Bot/internal/auth"
	"github.com/realaashishly/Social-Bot/internal/bot"
	"github.com/realaashishly/Social-Bot/internal/config"
	"github.com/realaashishly/Social-Bot/internal/db"
	"github.com/realaashishly/Social-Bot/internal/httpapi"
	"github.com/realaashishly/Social-Bot/internal/logging"
	"github.com/realaashishly/Social-Bot/internal/pipeline"
	"github.com/realaashishly/Social-Bot/internal/store/redisstore"
	"github.com/realaashishly/Social-Bot/internal/store/sqlstore"
	"github.com/realaashishly/Social-Bot/internal/transcript"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "socialbot",
		Short:         "Telegram bot that turns your events into social posts",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runBot,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Poll Telegram and serve the ops API (default)",
		RunE:  runBot,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE:  runMigrate,
	}

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the ops API",
		RunE:  runToken,
	}
	tokenCmd.Flags().String("subject", "ops", "token subject")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(runCmd, migrateCmd, tokenCmd)
	return rootCmd
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	log.Info("schema migrated")
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	subject, _ := cmd.Flags().GetString("subject")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	tok, err := auth.SignJWT(subject, cfg.AdminJWTSecret, ttl)
	if err != nil {
		return fmt.Errorf("sign token (is ADMIN_JWT_SECRET set?): %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

// newRegistry registers every provider the bot can talk to.
func newRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required")
		}
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, m), nil
	})

	reg.Register("openrouter", func(ctx context.Context, model string) (ai.Provider, error) {
		if cfg.OpenRouterAPIKey == "" {
			return nil, errors.New("OPENROUTER_API_KEY is required")
		}
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, m, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})

	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})

	return reg
}

func buildProvider(ctx context.Context, cfg config.Config) (ai.Provider, error) {
	reg := newRegistry(cfg)
	p, err := reg.Get(ctx, cfg.AIProvider, "")
	if err != nil {
		return nil, fmt.Errorf("AI_PROVIDER=%q (known: %s): %w", cfg.AIProvider, strings.Join(reg.Names(), ", "), err)
	}
	return p, nil
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Error("database unavailable", zap.Error(err))
		return err
	}
	if err := db.Migrate(gdb); err != nil {
		log.Error("automigrate failed", zap.Error(err))
		return err
	}

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return err
	}

	var locker pipeline.Locker = pipeline.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer func() { _ = rds.Close() }()
		if err := rds.Ping(ctx); err != nil {
			log.Error("redis unavailable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			return err
		}
		locker = rds
	}

	tg, err := bot.NewTelegramBot(cfg.TelegramToken, nil)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Deps{
		Messenger:         bot.NewMessenger(tg),
		Users:             sqlstore.NewUsers(gdb),
		Events:            sqlstore.NewEvents(gdb),
		Fetcher:           transcript.NewYouTube(),
		Completer:         provider,
		Locker:            locker,
		Logger:            log,
		CompletionTimeout: cfg.CompletionTimeout,
		NotesEnabled:      cfg.NotesEnabled,
	})

	var srv *http.Server
	if cfg.HTTPAddr != "" {
		srv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.NewRouter(gdb, cfg, log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("ops api listening", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("ops api stopped", zap.Error(err))
			}
		}()
	}

	log.Info("bot started",
		zap.String("ai_provider", cfg.AIProvider),
		zap.Bool("notes_enabled", cfg.NotesEnabled),
		zap.Bool("redis_lock", cfg.RedisAddr != ""),
	)

	d := bot.NewDispatcher(tg, bot.NewRouter(p, log), cfg.BotConcurrency, log)
	runErr := d.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	log.Info("bot stopped")
	return runErr
}
