package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Reachvip123/telegram-store-bot/config"
	"github.com/Reachvip123/telegram-store-bot/internal/database"
	"github.com/Reachvip123/telegram-store-bot/internal/khqr"
	"github.com/Reachvip123/telegram-store-bot/internal/logger"
	"github.com/Reachvip123/telegram-store-bot/internal/producer"
	"github.com/Reachvip123/telegram-store-bot/internal/repository"
	"github.com/Reachvip123/telegram-store-bot/internal/service"
	transport "github.com/Reachvip123/telegram-store-bot/internal/transport/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)

	db := database.ConnectDB(&cfg.DB.Config, log)
	defer database.CloseDB(db, log)

	repos := repository.New(db)

	var gateway khqr.Gateway
	switch {
	case cfg.Bakong.ProxyURL != "":
		gateway = khqr.NewProxyGateway(cfg.Bakong.ProxyURL, log)
		log.Info("KHQR proxy gateway enabled", zap.String("url", cfg.Bakong.ProxyURL))
	case cfg.Bakong.Token != "":
		gateway = khqr.NewDirectGateway(khqr.DirectConfig{
			Token:        cfg.Bakong.Token,
			BankAccount:  cfg.Bakong.BankAccount,
			MerchantName: cfg.Bakong.MerchantName,
		}, log)
		log.Info("KHQR direct gateway enabled", zap.String("account", cfg.Bakong.BankAccount))
	default:
		log.Warn("no KHQR transport configured, orders cannot be paid (set BAKONG_TOKEN or BAKONG_PROXY_URL)")
	}

	var (
		messenger service.Messenger
		notifier  service.Notifier
	)
	if len(cfg.Kafka.Brokers) > 0 {
		kp := producer.NewStoreProducer(cfg.Kafka.Brokers, cfg.Kafka.MessagesTopic, cfg.Kafka.AlertsTopic)
		defer kp.Close()
		messenger, notifier = kp, kp
		log.Info("Kafka message producer enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		lm := producer.NewLogMessenger(log)
		messenger, notifier = lm, lm
		log.Warn("KAFKA_BROKERS not set, buyer messages go to the log only")
	}

	orders := service.NewFulfillmentService(repos, gateway, messenger, notifier, log, service.Options{
		PollInterval: cfg.Polling.Interval,
		PollAttempts: cfg.Polling.Attempts,
	})
	defer orders.Close()

	handler := transport.NewStoreHandler(repos, orders, log)
	router := transport.NewRouter(handler, cfg.APIKey)

	srv := &http.Server{
		Addr:    cfg.Port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Starting HTTP server", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-quit
	log.Info("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	log.Info("HTTP server stopped gracefully")
}
