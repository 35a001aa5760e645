package main

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/service"
)

type seedConfig struct {
	AdminName     string `env:"SEED_ADMIN_NAME" envDefault:"Admin"`
	AdminEmail    string `env:"SEED_ADMIN_EMAIL"`
	AdminPassword string `env:"SEED_ADMIN_PASSWORD"`
}

var demoProducts = []domain.Product{
	{Name: "Wireless Headphones", Brand: "Sonora", Category: "electronics", Price: 89.99, CountInStock: 25, Image: "/images/headphones.jpg", Description: "Over-ear bluetooth headphones with 30h battery."},
	{Name: "Smartphone 128GB", Brand: "Nova", Category: "electronics", Price: 599, CountInStock: 10, Image: "/images/phone.jpg", Description: "6.5 inch display, dual camera."},
	{Name: "Mechanical Keyboard", Brand: "Keyforge", Category: "electronics", Price: 129.5, CountInStock: 15, Image: "/images/keyboard.jpg", Description: "Hot-swappable switches, RGB backlight."},
	{Name: "Cotton T-Shirt", Brand: "Basics", Category: "apparel", Price: 19.99, CountInStock: 100, Image: "/images/tshirt.jpg", Description: "Unisex crew neck."},
	{Name: "Running Shoes", Brand: "Stride", Category: "apparel", Price: 120, CountInStock: 30, Image: "/images/shoes.jpg", Description: "Lightweight trainers."},
	{Name: "Espresso Machine", Brand: "Barista", Category: "home", Price: 1499, CountInStock: 5, Image: "/images/espresso.jpg", Description: "15 bar pump, steam wand."},
	{Name: "Desk Lamp", Brand: "Lumo", Category: "home", Price: 35, CountInStock: 40, Image: "/images/lamp.jpg", Description: "LED lamp with dimmer."},
	{Name: "Yoga Mat", Brand: "Zen", Category: "sports", Price: 25, CountInStock: 0, Image: "/images/yogamat.jpg", Description: "Non-slip, 6mm."},
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	var seedCfg seedConfig
	if err := env.Parse(&seedCfg); err != nil {
		panic(err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	stores, err := repository.Open(ctx, logger, cfg)
	if err != nil {
		logger.Fatal("store connect", zap.Error(err))
	}
	defer stores.Close(context.Background())

	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("seeding the memory store has no lasting effect")
	}

	catalog := service.NewProductService(logger, stores.Products)
	existing, err := catalog.List(ctx, service.ListProductsInput{Limit: 1})
	if err != nil {
		logger.Fatal("list products", zap.Error(err))
	}
	if existing.Total > 0 {
		logger.Info("catalog already seeded", zap.Int64("products", existing.Total))
	} else {
		for _, p := range demoProducts {
			created, err := catalog.Create(ctx, p)
			if err != nil {
				logger.Fatal("create product", zap.Error(err), zap.String("name", p.Name))
			}
			logger.Info("product created", zap.String("id", created.ID), zap.String("name", created.Name))
		}
	}

	if err := seedAdmin(ctx, stores.Users, seedCfg); err != nil {
		logger.Fatal("seed admin", zap.Error(err))
	}
	logger.Info("seed finished")
}

// seedAdmin crea el usuario administrador si se pasaron credenciales.
func seedAdmin(ctx context.Context, users repository.UserRepository, cfg seedConfig) error {
	emailAddr := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if emailAddr == "" || cfg.AdminPassword == "" {
		return nil
	}
	if _, err := users.GetByEmail(ctx, emailAddr); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = users.Create(ctx, domain.User{
		Name:         cfg.AdminName,
		Email:        emailAddr,
		PasswordHash: string(hash),
		IsAdmin:      true,
		CreatedAt:    time.Now().UTC(),
	})
	return err
}
