package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/thraizz/crowd-server-go/internal/game"
	"github.com/thraizz/crowd-server-go/internal/game/cards"
	"github.com/thraizz/crowd-server-go/internal/game/side"
)

// EnvPrefix prefixes every environment override, e.g. CROWD_SERVER_GRPC_ADDRESS.
const EnvPrefix = "CROWD"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Game     GameConfig     `mapstructure:"game"`
	AI       AIConfig       `mapstructure:"ai"`
	Replay   ReplayConfig   `mapstructure:"replay"`
}

// ServerConfig holds transport settings.
type ServerConfig struct {
	GRPC         GRPCConfig      `mapstructure:"grpc"`
	WebSocket    WebSocketConfig `mapstructure:"websocket"`
	TickInterval time.Duration   `mapstructure:"tick_interval"`
	MaxSessions  int             `mapstructure:"max_sessions"`
}

// GRPCConfig holds gRPC listener settings.
type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// WebSocketConfig holds the WebSocket listener settings.
type WebSocketConfig struct {
	Address string `mapstructure:"address"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	MaxConns int    `mapstructure:"max_conns"`
}

// AuthConfig holds admin credentials.
type AuthConfig struct {
	// AdminPasswordHash is a bcrypt hash. Empty disables admin RPCs.
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

// CardConfig is one catalog entry in the config file.
type CardConfig struct {
	Name         string `mapstructure:"name"`
	HP           int    `mapstructure:"hp"`
	Power        int    `mapstructure:"power"`
	CastCost     int    `mapstructure:"cast_cost"`
	MinimumCrowd int    `mapstructure:"minimum_crowd"`
	Art          string `mapstructure:"art"`
	Flavor       string `mapstructure:"flavor"`
}

// GameConfig holds the rule engine settings.
type GameConfig struct {
	StartingHP        int          `mapstructure:"starting_hp"`
	OpeningHand       int          `mapstructure:"opening_hand"`
	DeckMultiplier    int          `mapstructure:"deck_multiplier"`
	CombatPassThrough bool         `mapstructure:"combat_pass_through"`
	InputQueueSize    int          `mapstructure:"input_queue_size"`
	CheckInvariants   bool         `mapstructure:"check_invariants"`
	FirstSide         string       `mapstructure:"first_side"`
	Catalog           []CardConfig `mapstructure:"catalog"`
}

// AIConfig holds AI seat settings.
type AIConfig struct {
	PassWhenStuck bool `mapstructure:"pass_when_stuck"`
}

// ReplayConfig controls replay recording.
type ReplayConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc.address", ":50051")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)
	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.tick_interval", 100*time.Millisecond)
	v.SetDefault("server.max_sessions", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("auth.admin_password_hash", "")

	defaults := game.DefaultOptions()
	v.SetDefault("game.starting_hp", defaults.StartingHP)
	v.SetDefault("game.opening_hand", defaults.OpeningHand)
	v.SetDefault("game.deck_multiplier", defaults.DeckMultiplier)
	v.SetDefault("game.combat_pass_through", defaults.CombatPassThrough)
	v.SetDefault("game.input_queue_size", defaults.InputQueueSize)
	v.SetDefault("game.check_invariants", false)
	v.SetDefault("game.first_side", defaults.FirstSide.String())

	v.SetDefault("ai.pass_when_stuck", defaults.AIPassWhenStuck)

	v.SetDefault("replay.enabled", false)
	v.SetDefault("replay.directory", "replays")
}

// Load reads the YAML file at path, applies CROWD_* environment overrides
// and validates the result. A missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and the catalog override.
func (c *Config) Validate() error {
	if c.Server.TickInterval <= 0 {
		return fmt.Errorf("%w: server.tick_interval must be positive", ErrInvalidConfig)
	}
	if c.Server.MaxSessions < 0 {
		return fmt.Errorf("%w: server.max_sessions cannot be negative", ErrInvalidConfig)
	}
	if c.Server.GRPC.MaxConcurrentStreams < 1 {
		return fmt.Errorf("%w: server.grpc.max_concurrent_streams must be positive", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.Server.WebSocket.Path, "/") {
		return fmt.Errorf("%w: server.websocket.path must start with /", ErrInvalidConfig)
	}
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("%w: database.url is required when the database is enabled", ErrInvalidConfig)
	}
	if c.Game.StartingHP < 1 {
		return fmt.Errorf("%w: game.starting_hp must be positive", ErrInvalidConfig)
	}
	if c.Game.OpeningHand < 0 {
		return fmt.Errorf("%w: game.opening_hand cannot be negative", ErrInvalidConfig)
	}
	if c.Game.DeckMultiplier < 1 {
		return fmt.Errorf("%w: game.deck_multiplier must be at least 1", ErrInvalidConfig)
	}
	if c.Game.InputQueueSize < 1 {
		return fmt.Errorf("%w: game.input_queue_size must be positive", ErrInvalidConfig)
	}
	if c.Game.FirstSide != "" {
		if _, ok := side.Parse(c.Game.FirstSide); !ok {
			return fmt.Errorf("%w: game.first_side %q is not a side", ErrInvalidConfig, c.Game.FirstSide)
		}
	}
	if c.Replay.Enabled && c.Replay.Directory == "" {
		return fmt.Errorf("%w: replay.directory is required when replays are enabled", ErrInvalidConfig)
	}
	if _, err := c.Game.BuildCatalog(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// BuildCatalog returns the configured catalog, or the default set when the
// config carries none.
func (g GameConfig) BuildCatalog() (*cards.Catalog, error) {
	if len(g.Catalog) == 0 {
		return cards.DefaultCatalog(), nil
	}
	defs := make([]cards.Definition, 0, len(g.Catalog))
	for _, entry := range g.Catalog {
		defs = append(defs, cards.Definition{
			Name:   entry.Name,
			Art:    entry.Art,
			Flavor: entry.Flavor,
			Stats: cards.Stats{
				HP:           entry.HP,
				Power:        entry.Power,
				CastCost:     entry.CastCost,
				MinimumCrowd: entry.MinimumCrowd,
			},
		})
	}
	return cards.NewCatalog(defs)
}

// GameOptions converts the config into session options.
func (c *Config) GameOptions() (game.Options, error) {
	catalog, err := c.Game.BuildCatalog()
	if err != nil {
		return game.Options{}, err
	}
	first := side.Player
	if c.Game.FirstSide != "" {
		parsed, ok := side.Parse(c.Game.FirstSide)
		if !ok {
			return game.Options{}, fmt.Errorf("unknown first side %q", c.Game.FirstSide)
		}
		first = parsed
	}
	return game.Options{
		StartingHP:        c.Game.StartingHP,
		OpeningHand:       c.Game.OpeningHand,
		DeckMultiplier:    c.Game.DeckMultiplier,
		CombatPassThrough: c.Game.CombatPassThrough,
		InputQueueSize:    c.Game.InputQueueSize,
		AIPassWhenStuck:   c.AI.PassWhenStuck,
		CheckInvariants:   c.Game.CheckInvariants,
		FirstSide:         first,
		Catalog:           catalog,
	}, nil
}
