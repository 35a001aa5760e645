package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/email"
	apihttp "storefront/internal/http"
	"storefront/internal/repository"
	"storefront/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	stores, err := repository.Open(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("store connect", zap.Error(err), zap.String("driver", cfg.StoreDriver))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			logger.Warn("store close failed", zap.Error(err))
		}
	}()

	otpTTL := time.Duration(cfg.OTPTTLMinutes) * time.Minute
	var (
		otpStore    service.OTPStore
		otpLimiter  service.OTPRateLimiter
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory otp store", zap.Error(err))
		} else {
			otpStore = service.NewRedisOTPStore(redisClient)
			otpLimiter = service.NewRedisOTPRateLimiter(logger, redisClient, otpTTL, cfg.OTPMaxRequest)
		}
		cancel()
		defer redisClient.Close()
	}
	if otpStore == nil {
		otpStore = service.NewMemoryOTPStore()
		otpLimiter = service.NewOTPRateLimiter(otpTTL, cfg.OTPMaxRequest)
	}

	dispatcher := email.NewDispatcher(logger, newEmailSender(cfg, logger), cfg.MailWorkers, cfg.MailQueueSize)

	jwtSvc := service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour)
	pricing := service.NewPricing(cfg.TaxRate, cfg.ShippingFlatFee, cfg.FreeShippingOver)

	userSvc := service.NewUserService(logger, stores.Users, otpStore, dispatcher, otpLimiter, otpTTL)
	productSvc := service.NewProductService(logger, stores.Products)
	orderSvc := service.NewOrderService(logger, stores.Products, stores.Orders, pricing)

	router := apihttp.NewRouter(logger, jwtSvc,
		apihttp.NewUserHandler(logger, userSvc, jwtSvc),
		apihttp.NewProductHandler(logger, productSvc),
		apihttp.NewOrderHandler(logger, orderSvc),
	)
	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		handlers.AllowCredentials(),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           cors(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server",
			zap.String("port", cfg.HTTPPort),
			zap.String("store", stores.Driver),
			zap.String("env", cfg.AppEnv),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Primero se cierra HTTP para que no entren más correos, luego se drena la cola.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn("mail dispatcher shutdown", zap.Error(err))
	}
	stats := dispatcher.Stats()
	logger.Info("mail dispatcher stopped",
		zap.Int64("sent", stats.Sent),
		zap.Int64("failed", stats.Failed),
		zap.Int64("dropped", stats.Dropped),
	)
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Printf("warning: zap init: %v", err)
		return zap.NewNop()
	}
	return logger
}

// newEmailSender elige SMTP si está configurado; si no, preview en desarrollo
// y envío deshabilitado en producción.
func newEmailSender(cfg *config.Config, logger *zap.Logger) email.Sender {
	if cfg.SMTPConfigured() {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, cfg.MailFromName)
		if err == nil {
			return sender
		}
		logger.Warn("smtp sender init failed", zap.Error(err))
	}
	if !cfg.IsProduction() {
		logger.Info("smtp not configured, emails are logged")
		return email.NewPreviewSender(logger)
	}
	logger.Warn("smtp not configured, emails are disabled")
	return email.NewDisabledSender(logger, "smtp not configured")
}
