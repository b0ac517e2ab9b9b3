// Package config loads application configuration from environment variables.
// A .env file in the working directory, when present, is read first; variables
// already set in the environment win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (e.g. "dev", "production")
	Port           string // HTTP port to listen on
	DBUser         string
	DBPass         string // may be empty
	DBHost         string
	DBPort         string
	DBName         string
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int

	RabbitURL      string // empty disables booking event publishing
	BookingLogPath string // BOOKING_LOG_PATH, written by the booking.confirmed consumer

	SeatLock SeatLockConfig
	Realtime RealtimeConfig
}

// SeatLockConfig controls the lifetime of provisional seat locks.
type SeatLockConfig struct {
	TTL           time.Duration // SEAT_LOCK_TTL
	SweepInterval time.Duration // SEAT_LOCK_SWEEP_INTERVAL
}

// RealtimeConfig tunes each websocket connection.  A connection that sends
// nothing for IdleTimeout is treated as dropped; the server pings every half
// IdleTimeout so that a live client always has something to answer.
type RealtimeConfig struct {
	SendBuffer      int           // WS_SEND_BUFFER, queued outbound events per connection
	MsgRate         float64       // WS_MSG_RATE, inbound messages per second
	MsgBurst        int           // WS_MSG_BURST
	IdleTimeout     time.Duration // WS_IDLE_TIMEOUT
	MaxMessageBytes int           // WS_MAX_MESSAGE_BYTES, largest accepted inbound frame
}

// Load reads the environment and returns a Config.  Missing required
// variables and malformed values are reported together in one error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     envInt("BCRYPT_COST", 10),
		RabbitURL:      rabbitURL(),
		BookingLogPath: envStr("BOOKING_LOG_PATH", "logs/booking.log"),
		SeatLock: SeatLockConfig{
			TTL:           envDur("SEAT_LOCK_TTL", 5*time.Minute),
			SweepInterval: envDur("SEAT_LOCK_SWEEP_INTERVAL", 5*time.Second),
		},
		Realtime: RealtimeConfig{
			SendBuffer:      envInt("WS_SEND_BUFFER", 64),
			MsgRate:         envFloat("WS_MSG_RATE", 20),
			MsgBurst:        envInt("WS_MSG_BURST", 40),
			IdleTimeout:     envDur("WS_IDLE_TIMEOUT", 60*time.Second),
			MaxMessageBytes: envInt("WS_MAX_MESSAGE_BYTES", 4096),
		},
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %v", missing)
	}
	if cfg.SeatLock.TTL <= 0 || cfg.SeatLock.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("seat lock durations must be positive")
	}
	if cfg.Realtime.SendBuffer < 1 {
		cfg.Realtime.SendBuffer = 1
	}
	if cfg.Realtime.MsgBurst < 1 {
		cfg.Realtime.MsgBurst = 1
	}
	if cfg.Realtime.IdleTimeout <= 0 {
		return Config{}, fmt.Errorf("WS_IDLE_TIMEOUT must be positive")
	}
	return cfg, nil
}

// rabbitURL accepts either RABBITMQ_URL or the older AMQP_URL.
func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

func envFloat(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return d
}
