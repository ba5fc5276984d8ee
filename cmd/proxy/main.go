package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Reachvip123/telegram-store-bot/internal/khqr"
	"github.com/Reachvip123/telegram-store-bot/internal/logger"
	transport "github.com/Reachvip123/telegram-store-bot/internal/transport/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// The proxy exposes QR creation and settlement checks from a Cambodia IP.
// Bakong rejects foreign addresses, so the storefront delegates both
// calls here when it runs abroad.
func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.L()

	token := os.Getenv("BAKONG_TOKEN")
	if token == "" {
		log.Fatal("BAKONG_TOKEN is required for the proxy")
	}
	port := os.Getenv("PROXY_PORT")
	if port == "" {
		port = ":8080"
	}

	gateway := khqr.NewDirectGateway(khqr.DirectConfig{
		Token:        token,
		BankAccount:  os.Getenv("BAKONG_ACCOUNT"),
		MerchantName: os.Getenv("MERCHANT_NAME"),
	}, log)

	router := transport.NewProxyRouter(transport.NewProxyHandler(gateway, log))

	srv := &http.Server{
		Addr:    port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Starting KHQR proxy", zap.String("addr", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("proxy server failed", zap.Error(err))
		}
	}()

	<-quit
	log.Info("Shutting down proxy...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("proxy shutdown failed", zap.Error(err))
	}
}
