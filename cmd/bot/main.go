package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v4"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"multichat/bot/internal/bot"
	"multichat/bot/internal/catalog"
	"multichat/bot/internal/config"
	"multichat/bot/internal/logging"
	"multichat/bot/internal/storage"
	"multichat/bot/internal/web"
)

func main() {
	setupConfig()
	logging.Init()

	cfg := config.New()
	logrus.Debugf("config: %+v", cfg)

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		logrus.Fatalf("Failed to load catalog: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	store := storage.New(db)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	initCtx, migrateCancel := context.WithTimeout(ctx, 10*time.Second)
	defer migrateCancel()

	if err := store.Migrate(initCtx); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	globalState, err := store.GetOrCreateGlobalState(ctx)
	if err != nil {
		logrus.Fatalf("Failed to get or create global state: %v", err)
	}

	b, err := telebot.NewBot(telebot.Settings{
		Token: cfg.TelegramToken,
		Poller: &telebot.LongPoller{
			Timeout:        10 * time.Second,
			LastUpdateID:   globalState.LastUpdateID,
			AllowedUpdates: []string{"message", "callback_query"},
		},
	})
	if err != nil {
		logrus.Fatalf("Failed to create bot: %v", err)
	}

	service := bot.New(cfg, store, cat, b)
	service.Register(b)

	server := web.NewServer(cfg)

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Start()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx); err != nil {
			logrus.Errorf("keep-alive server: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		server.RunPinger(ctx)
	}()

	<-ctx.Done()

	b.Stop()

	logrus.Info("waiting for services to finish")
	wg.Wait()
}

func setupConfig() {
	config.SetupCommon()
}
