package config

import (
	"strings"

	"github.com/caarlos0/env/v10"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Config centraliza la configuración del servicio.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	MongoURI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB     string `env:"MONGO_DB" envDefault:"storefront"`

	JWTSecret     string `env:"JWT_SECRET,required,notEmpty"`
	JWTTTLHours   int    `env:"JWT_TTL_HOURS" envDefault:"168"`
	OTPTTLMinutes int    `env:"OTP_TTL_MINUTES" envDefault:"10"`
	OTPMaxRequest int    `env:"OTP_MAX_REQUESTS" envDefault:"5"`

	SMTPHost      string `env:"SMTP_HOST"`
	SMTPPort      int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser      string `env:"SMTP_USER"`
	SMTPPass      string `env:"SMTP_PASS"`
	MailFrom      string `env:"MAIL_FROM" envDefault:"no-reply@megamart.local"`
	MailFromName  string `env:"MAIL_FROM_NAME" envDefault:"MegaMart"`
	MailWorkers   int    `env:"MAIL_WORKERS" envDefault:"2"`
	MailQueueSize int    `env:"MAIL_QUEUE_SIZE" envDefault:"100"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	TaxRate          float64 `env:"TAX_RATE" envDefault:"0.10"`
	ShippingFlatFee  float64 `env:"SHIPPING_FLAT_FEE" envDefault:"100"`
	FreeShippingOver float64 `env:"FREE_SHIPPING_OVER" envDefault:"1000"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return &cfg, nil
}

// IsProduction indica si el servicio corre en producción.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
}

// SMTPConfigured indica si hay transporte SMTP completo.
func (c *Config) SMTPConfigured() bool {
	return strings.TrimSpace(c.SMTPHost) != "" && c.SMTPPort != 0 &&
		strings.TrimSpace(c.SMTPUser) != "" && c.SMTPPass != ""
}
