package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	BackendSim = "sim"
	BackendMPV = "mpv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
		LogLevel  string `env:"LOG_LEVEL"`
		LogFile   string `env:"LOG_FILE" env-default:"moments-player.log"`
		UserID    string `env:"APP_USER_ID" env-default:"demo"`
		FeedLimit int    `env:"APP_FEED_LIMIT" env-default:"50"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT" env-default:"5432"`
		Host    string `env:"POSTGRES_HOST" env-default:"localhost"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`

		AutoMigrate bool `env:"POSTGRES_AUTO_MIGRATE" env-default:"true"`
	}
	Player struct {
		Backend         string        `env:"PLAYER_BACKEND" env-default:"sim" env-description:"decoder backend: sim or mpv"`
		TickInterval    time.Duration `env:"PLAYER_TICK_INTERVAL" env-default:"100ms"`
		TickIncrement   float64       `env:"PLAYER_TICK_INCREMENT" env-default:"0.01"`
		PollInterval    time.Duration `env:"PLAYER_POLL_INTERVAL" env-default:"100ms"`
		IndicatorWindow time.Duration `env:"PLAYER_INDICATOR_WINDOW" env-default:"1s"`
		OpTimeout       time.Duration `env:"PLAYER_OP_TIMEOUT" env-default:"2s"`
		StartMuted      bool          `env:"PLAYER_START_MUTED" env-default:"false"`
		WindowRadius    int           `env:"PLAYER_WINDOW_RADIUS" env-default:"2" env-description:"rendered items kept on each side of the visible one"`
		MpvPath         string        `env:"PLAYER_MPV_PATH" env-default:"mpv"`
		SimDuration     time.Duration `env:"PLAYER_SIM_DURATION" env-default:"15s"`
		SimLoadDelay    time.Duration `env:"PLAYER_SIM_LOAD_DELAY" env-default:"300ms"`
		OpenWorkers     int           `env:"PLAYER_OPEN_WORKERS" env-default:"8" env-description:"handles that may be opening at once"`
	}
	Likes struct {
		Requests int           `env:"LIKES_REQUESTS" env-default:"1"`
		Per      time.Duration `env:"LIKES_PER" env-default:"500ms"`
		Burst    int           `env:"LIKES_BURST" env-default:"3"`
		Retries  uint64        `env:"LIKES_RETRIES" env-default:"3"`
		Workers  int           `env:"LIKES_WORKERS" env-default:"4"`
	}
	Stories struct {
		TTL             time.Duration `env:"STORIES_TTL" env-default:"24h"`
		CleanupInterval time.Duration `env:"STORIES_CLEANUP_INTERVAL" env-default:"1h"`
	}
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}

// Load reads the configuration without caching it.
func Load() (*Config, error) {
	c := &Config{}
	if err := cleanenv.ReadEnv(c); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	return c, nil
}

// GetDSN returns the postgres connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Pass,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.Name,
		c.Postgres.SslMode,
	)
}
