package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"todo-planner/internal/bot"
	"todo-planner/internal/config"
	httpapi "todo-planner/internal/handler/http"
	"todo-planner/internal/logger"
	"todo-planner/internal/notify"
	"todo-planner/internal/repository"
	mongostore "todo-planner/internal/repository/mongo"
	"todo-planner/internal/service"
)

const limiterSweepInterval = 10 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		logger.Fatal("dotenv", "err", err)
	}
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatal("config", "err", err)
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		logger.Fatal("logger", "err", err)
	}

	users, todos, closeStore, err := openStores(ctx, cfg)
	if err != nil {
		logger.Fatal("storage", "driver", cfg.DBDriver, "err", err)
	}
	defer closeStore()

	loc := cfg.Location()
	authSvc := service.NewAuthService(users, cfg.JWTSecret, cfg.TokenTTL, cfg.Timezone)
	todoSvc := service.NewTodoService(todos, loc)

	api := httpapi.New(httpapi.Options{
		Auth:        authSvc,
		Todos:       todoSvc,
		CORSOrigins: cfg.CORSOrigins,
		Location:    loc,
	})

	scheduler := service.NewSchedulerService(loc)
	if _, err := scheduler.ScheduleInterval("rate-limiter-sweep", limiterSweepInterval, api.SweepLimiters); err != nil {
		logger.Fatal("schedule limiter sweep", "err", err)
	}

	botErr := make(chan error, 1)
	if cfg.TelegramToken != "" {
		botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			logger.Fatal("telegram", "err", err)
		}
		if err := tgbotapi.SetLogger(logger.StdLog()); err != nil {
			logger.Warn("telegram logger", "err", err)
		}
		logger.Info("telegram bot authorized", "account", botAPI.Self.UserName)

		digestSvc := service.NewDigestService(users, todos, notify.NewTelegram(botAPI), loc)
		if _, err := scheduler.ScheduleDaily("daily-digest", cfg.DigestTime, func(ctx context.Context) error {
			return digestSvc.SendAll(ctx, time.Now())
		}); err != nil {
			logger.Fatal("schedule digest", "err", err)
		}

		telegramBot := bot.New(botAPI, authSvc, todoSvc, digestSvc)
		go func() { botErr <- telegramBot.Start(ctx) }()
	} else {
		logger.Info("TELEGRAM_TOKEN not set, bot and digest disabled")
	}

	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "driver", cfg.DBDriver)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "err", err)
		}
	case err := <-botErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("bot stopped", "err", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	logger.Info("shutdown complete")
}

// openStores connects the backend selected by DB_DRIVER. The returned func
// releases its connections.
func openStores(ctx context.Context, cfg config.Config) (service.UserStore, service.TodoStore, func(), error) {
	if cfg.DBDriver == "mongo" {
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		store, err := mongostore.Connect(connectCtx, cfg.DatabaseURL, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Close(closeCtx); err != nil {
				logger.Warn("close mongo", "err", err)
			}
		}
		return store.Users, store.Todos, closeFn, nil
	}

	db, err := repository.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return repository.NewUserRepository(db), repository.NewTodoRepository(db), closeFn, nil
}
