package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable that overrides the config path.
const EnvPath = "ZARENA_CONFIG"

// DefaultPath is used when neither a flag nor EnvPath names a config file.
const DefaultPath = "config/arenaserver.yaml"

// Server holds all configuration for the arena server.
type Server struct {
	// Network
	BindAddress    string   `yaml:"bind_address"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // empty allows any origin

	// Write queue / timeouts
	WriteTimeout  time.Duration `yaml:"write_timeout"`   // per-write deadline (default: 5s)
	ReadTimeout   time.Duration `yaml:"read_timeout"`    // idle client disconnect (default: 60s)
	SendQueueSize int           `yaml:"send_queue_size"` // per-client outbox capacity (default: 256)

	// Database
	Database DatabaseConfig `yaml:"database"`

	Room    RoomConfig    `yaml:"room"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Auth    AuthConfig    `yaml:"auth"`
	Economy EconomyConfig `yaml:"economy"`

	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// RoomConfig holds session and wave pacing parameters.
type RoomConfig struct {
	MaxPlayers        int           `yaml:"max_players"`
	MinPlayersToStart int           `yaml:"min_players_to_start"`
	RoundRestartDelay time.Duration `yaml:"round_restart_delay"`
	SpawnInterval     time.Duration `yaml:"spawn_interval"`
	PoolSize          int           `yaml:"pool_size"` // max concurrent zombies per room
	GCInterval        time.Duration `yaml:"gc_interval"`
}

// LedgerConfig holds settlement dispatcher parameters.
type LedgerConfig struct {
	Workers       int           `yaml:"workers"`
	QueueSize     int           `yaml:"queue_size"`
	SettleTimeout time.Duration `yaml:"settle_timeout"`
}

// AuthConfig holds identity ticket parameters.
type AuthConfig struct {
	TicketSecret string        `yaml:"ticket_secret"`
	TicketTTL    time.Duration `yaml:"ticket_ttl"`
}

// EconomyConfig holds token prices.
type EconomyConfig struct {
	MysteryBoxCost int            `yaml:"mystery_box_cost"`
	PerkPrices     map[string]int `yaml:"perk_prices"` // perk → price
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		BindAddress:   "0.0.0.0",
		Port:          3001,
		WriteTimeout:  5 * time.Second,
		ReadTimeout:   60 * time.Second,
		SendQueueSize: 256,
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "zarena",
			Password: "zarena",
			DBName:   "zarena",
			SSLMode:  "disable",
		},
		Room: RoomConfig{
			MaxPlayers:        4,
			MinPlayersToStart: 2,
			RoundRestartDelay: 10 * time.Second,
			SpawnInterval:     2 * time.Second,
			PoolSize:          24,
			GCInterval:        30 * time.Second,
		},
		Ledger: LedgerConfig{
			Workers:       4,
			QueueSize:     1024,
			SettleTimeout: 5 * time.Second,
		},
		Auth: AuthConfig{
			TicketTTL: 24 * time.Hour,
		},
		Economy: EconomyConfig{
			MysteryBoxCost: 950,
			PerkPrices: map[string]int{
				"juggernog":  2500,
				"speed_cola": 3000,
				"stamin_up":  2000,
			},
		},
		LogLevel: "info",
	}
}

// ResolvePath returns flagPath if set, else $ZARENA_CONFIG, else DefaultPath.
func ResolvePath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return DefaultPath
}

// LoadServer loads server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks values that would make the server misbehave.
func (s Server) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	if s.Room.MaxPlayers <= 0 {
		return fmt.Errorf("room.max_players must be positive, got %d", s.Room.MaxPlayers)
	}
	if s.Room.MinPlayersToStart <= 0 || s.Room.MinPlayersToStart > s.Room.MaxPlayers {
		return fmt.Errorf("room.min_players_to_start %d outside 1..%d",
			s.Room.MinPlayersToStart, s.Room.MaxPlayers)
	}
	if s.Room.PoolSize <= 0 {
		return fmt.Errorf("room.pool_size must be positive, got %d", s.Room.PoolSize)
	}
	if s.Ledger.Workers <= 0 || s.Ledger.QueueSize <= 0 {
		return fmt.Errorf("ledger workers and queue_size must be positive")
	}
	if s.Economy.MysteryBoxCost < 0 {
		return fmt.Errorf("economy.mystery_box_cost must not be negative")
	}
	for perk, price := range s.Economy.PerkPrices {
		if price < 0 {
			return fmt.Errorf("economy.perk_prices.%s must not be negative", perk)
		}
	}
	return nil
}
