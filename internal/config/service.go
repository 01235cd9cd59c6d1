package config

import "time"

type ServiceConfig struct {
	Name                string `yaml:"name"`
	Environment         string `yaml:"environment"`
	Version             string `yaml:"version"`
	ClientURL           string `yaml:"client_url"`
	StripeSecretKey     string `yaml:"stripe_secret_key"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret"`
	JWTSecret           string `yaml:"jwt_secret"`

	// MaxDeliveryAttempts bounds provider redeliveries for events that
	// reference a customer with no local user row. Once exceeded the event
	// is flagged for manual inspection and acknowledged.
	MaxDeliveryAttempts int `yaml:"max_delivery_attempts"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}
