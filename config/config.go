// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds every tunable of the relay service. Values come from the
// environment, with a .env file loaded first when present.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	DatabaseURL string        `env:"DATABASE_URL,required"`
	DBTimeout   time.Duration `env:"DB_TIMEOUT,default=5s"`

	SolanaRPCURL   string        `env:"SOLANA_RPC_URL,default=https://api.devnet.solana.com"`
	RPCTimeout     time.Duration `env:"RPC_TIMEOUT,default=30s"`
	SwapProgramID  string        `env:"SWAP_PROGRAM_ID,default=2bgpPzHUWu9jRAMUcF2Kex4dKti6U554hkhpkBi4EpHK"`
	RelayerKeypair string        `env:"RELAYER_KEYPAIR"`

	JupiterBaseURL string        `env:"JUPITER_BASE_URL,default=https://quote-api.jup.ag/v6"`
	QuoteTimeout   time.Duration `env:"QUOTE_TIMEOUT,default=10s"`

	ProtocolFeeBps uint64 `env:"PROTOCOL_FEE_BPS,default=10"`

	SessionTTL    time.Duration `env:"SESSION_TTL,default=1h"`
	SessionSweep  time.Duration `env:"SESSION_SWEEP_INTERVAL,default=15m"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB,default=0"`

	QueueWorkers    int           `env:"QUEUE_WORKERS,default=4"`
	QueueMaxRetries int           `env:"QUEUE_MAX_RETRIES,default=3"`
	QueueBackoff    time.Duration `env:"QUEUE_BACKOFF,default=30s"`
	RevealDelay     time.Duration `env:"REVEAL_DELAY,default=30s"`

	ExpirySweep time.Duration `env:"EXPIRY_SWEEP_INTERVAL,default=1m"`

	WebhookURL string `env:"WEBHOOK_URL"`
}

// Load reads a .env file when present and decodes the environment.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	return &cfg, nil
}
