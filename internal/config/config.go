package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/prottoy/tableproto-backend/internal/room"
	"github.com/prottoy/tableproto-backend/pkg/board"
)

type Config struct {
	Port           string
	Canvas         board.Canvas
	LeaseTTL       time.Duration
	AllowedOrigins []string
	Dev            bool
}

// Load reads configuration from the environment, with an optional .env file
// for local development.
func Load() (Config, error) {
	_ = godotenv.Load() // missing .env is fine

	cfg := Config{
		Port:   getenv("PORT", "8080"),
		Canvas: board.Canvas{Width: 1920, Height: 1080},
		Dev:    os.Getenv("APP_ENV") == "dev",
	}

	var err error
	if cfg.Canvas.Width, err = getfloat("CANVAS_WIDTH", cfg.Canvas.Width); err != nil {
		return Config{}, err
	}
	if cfg.Canvas.Height, err = getfloat("CANVAS_HEIGHT", cfg.Canvas.Height); err != nil {
		return Config{}, err
	}

	ttlMS, err := getint("ROOM_LEASE_TTL_MS", int(room.DefaultLeaseTTL/time.Millisecond))
	if err != nil {
		return Config{}, err
	}
	cfg.LeaseTTL = time.Duration(ttlMS) * time.Millisecond

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

func getfloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return f, nil
}
