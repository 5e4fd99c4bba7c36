package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server holds process configuration. Environment variables provide the
// defaults and command-line flags override them.
type Server struct {
	Host        string `env:"BACKGAMMON_HOST" envDefault:"localhost"`
	Port        int    `env:"BACKGAMMON_PORT" envDefault:"3001"`
	DBPath      string `env:"BACKGAMMON_DB_PATH" envDefault:"backgammon.db"`
	BoardDir    string `env:"BACKGAMMON_BOARD_DIR" envDefault:"configs/boards"`
	SnapshotDir string `env:"BACKGAMMON_SNAPSHOT_DIR" envDefault:"sessions"`
	JWTSecret   string `env:"BACKGAMMON_JWT_SECRET"`
	Debug       bool   `env:"BACKGAMMON_DEBUG" envDefault:"false"`

	Tip              float64       `env:"BACKGAMMON_TIP" envDefault:"0.05"`
	TimeoutInterval  time.Duration `env:"BACKGAMMON_TIMEOUT_INTERVAL" envDefault:"3s"`
	ArchiveInterval  time.Duration `env:"BACKGAMMON_ARCHIVE_INTERVAL" envDefault:"60s"`
	DisconnectGrace  time.Duration `env:"BACKGAMMON_DISCONNECT_GRACE" envDefault:"1m"`
	ConcludedMaxAge  time.Duration `env:"BACKGAMMON_CONCLUDED_MAX_AGE" envDefault:"1h"`
	ShutdownDeadline time.Duration `env:"BACKGAMMON_SHUTDOWN_DEADLINE" envDefault:"10s"`

	NgrokEnabled bool   `env:"NGROK_ENABLED" envDefault:"false"`
	NgrokAuth    string `env:"NGROK_AUTHTOKEN"`
	NgrokDomain  string `env:"NGROK_DOMAIN"`

	// OTELEndpoint enables tracing when set, e.g. http://localhost:4318.
	OTELEndpoint string `env:"BACKGAMMON_OTEL_ENDPOINT"`
}

// Addr is the listen address.
func (c Server) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks values that env parsing alone cannot.
func (c Server) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.Tip < 0 || c.Tip >= 1 {
		return fmt.Errorf("tip must be in [0,1), got %v", c.Tip)
	}
	if c.TimeoutInterval <= 0 || c.ArchiveInterval <= 0 {
		return errors.New("sweep intervals must be positive")
	}
	if c.JWTSecret == "" {
		return errors.New("BACKGAMMON_JWT_SECRET is required")
	}
	return nil
}

// ParseServer parses environment and flags into Server.
func ParseServer(fs *flag.FlagSet, args []string) (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Host, "host", cfg.Host, "HTTP server host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.BoardDir, "board-dir", cfg.BoardDir, "Directory containing stake tier files")
	fs.StringVar(&cfg.SnapshotDir, "snapshot-dir", cfg.SnapshotDir, "Directory for in-progress match snapshots")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	fs.Float64Var(&cfg.Tip, "tip", cfg.Tip, "House tip taken from each payout")
	fs.DurationVar(&cfg.TimeoutInterval, "timeout-interval", cfg.TimeoutInterval, "How often turn clocks are checked")
	fs.DurationVar(&cfg.ArchiveInterval, "archive-interval", cfg.ArchiveInterval, "How often concluded matches are archived")
	fs.BoolVar(&cfg.NgrokEnabled, "ngrok", cfg.NgrokEnabled, "Enable ngrok tunnel")
	fs.StringVar(&cfg.NgrokDomain, "ngrok-domain", cfg.NgrokDomain, "Custom ngrok domain (optional)")
	fs.StringVar(&cfg.OTELEndpoint, "otel-endpoint", cfg.OTELEndpoint, "OTLP/HTTP trace endpoint (optional)")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Server{}, err
	}
	return cfg, nil
}
