package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"blackjack-lite/apps/server/internal/ledger"
)

// Config is the server's runtime configuration. Precedence: flags, then
// environment (a .env file is loaded first when present), then defaults.
type Config struct {
	MaxPlayers       int
	EnforceTurnOrder bool
	Seed             int64
	AutoStart        bool
	AutoNextRound    time.Duration

	RendezvousAddr string
	BindHost       string
	PortMax        int
	HandoffTimeout time.Duration
	SendTimeout    time.Duration
	SendQueue      int

	HTTPAddr string

	LedgerMode       string
	LedgerSQLitePath string
	DatabaseURL      string
}

func Default() Config {
	return Config{
		MaxPlayers:       2,
		RendezvousAddr:   ":10000",
		PortMax:          65535,
		HandoffTimeout:   10 * time.Second,
		SendTimeout:      5 * time.Second,
		SendQueue:        64,
		HTTPAddr:         ":8080",
		LedgerMode:       ledger.ModeSQLite,
		LedgerSQLitePath: ledger.DefaultSQLitePath,
	}
}

// Load reads .env, the environment and then args.
func Load(args []string) (Config, error) {
	_ = godotenv.Load()
	cfg := FromEnv(Default())

	fs := flag.NewFlagSet("blackjack-server", flag.ContinueOnError)
	fs.IntVar(&cfg.MaxPlayers, "max-players", cfg.MaxPlayers, "players required before a round can start")
	fs.BoolVar(&cfg.EnforceTurnOrder, "enforce-turn-order", cfg.EnforceTurnOrder, "reject HIT/STAND from players not holding the turn")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "shuffle seed (0 = time based)")
	fs.BoolVar(&cfg.AutoStart, "auto-start", cfg.AutoStart, "deal the first round once the table is full")
	fs.DurationVar(&cfg.AutoNextRound, "auto-next-round", cfg.AutoNextRound, "delay before dealing the next round (0 = manual)")
	fs.StringVar(&cfg.RendezvousAddr, "addr", cfg.RendezvousAddr, "rendezvous listen address")
	fs.StringVar(&cfg.BindHost, "bind-host", cfg.BindHost, "host for per-player listeners")
	fs.IntVar(&cfg.PortMax, "port-max", cfg.PortMax, "upper bound (exclusive) of the per-player port search")
	fs.DurationVar(&cfg.HandoffTimeout, "handoff-timeout", cfg.HandoffTimeout, "time allowed to connect to the assigned port and send a name")
	fs.DurationVar(&cfg.SendTimeout, "send-timeout", cfg.SendTimeout, "per-line write deadline")
	fs.IntVar(&cfg.SendQueue, "send-queue", cfg.SendQueue, "outbound lines buffered per player")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "control/spectator HTTP address (empty disables)")
	fs.StringVar(&cfg.LedgerMode, "ledger", cfg.LedgerMode, "round ledger: none, sqlite or postgres")
	fs.StringVar(&cfg.LedgerSQLitePath, "ledger-sqlite-path", cfg.LedgerSQLitePath, "sqlite ledger path")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "postgres ledger DSN")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv overlays environment variables on base.
func FromEnv(base Config) Config {
	cfg := base
	cfg.MaxPlayers = envIntOrDefault("MAX_PLAYERS", cfg.MaxPlayers)
	cfg.EnforceTurnOrder = envBool("ENFORCE_TURN_ORDER", cfg.EnforceTurnOrder)
	cfg.Seed = envInt64OrDefault("SEED", cfg.Seed)
	cfg.AutoStart = envBool("AUTO_START", cfg.AutoStart)
	cfg.AutoNextRound = envDuration("AUTO_NEXT_ROUND", cfg.AutoNextRound)
	cfg.RendezvousAddr = envString("RENDEZVOUS_ADDR", cfg.RendezvousAddr)
	cfg.BindHost = envString("BIND_HOST", cfg.BindHost)
	cfg.PortMax = envIntOrDefault("PORT_MAX", cfg.PortMax)
	cfg.HandoffTimeout = envDuration("HANDOFF_TIMEOUT", cfg.HandoffTimeout)
	cfg.SendTimeout = envDuration("SEND_TIMEOUT", cfg.SendTimeout)
	cfg.SendQueue = envIntOrDefault("SEND_QUEUE", cfg.SendQueue)
	cfg.HTTPAddr = envString("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LedgerMode = envString("LEDGER_MODE", cfg.LedgerMode)
	cfg.LedgerSQLitePath = envString("LEDGER_SQLITE_PATH", cfg.LedgerSQLitePath)
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	return cfg
}

func (c Config) Validate() error {
	if c.MaxPlayers < 1 || c.MaxPlayers > 25 {
		return fmt.Errorf("max players must be in [1, 25], got %d", c.MaxPlayers)
	}
	base, err := c.RendezvousPort()
	if err != nil {
		return err
	}
	if c.PortMax <= base+1 || c.PortMax > 65535 {
		return fmt.Errorf("port max %d must be in (%d, 65535]", c.PortMax, base+1)
	}
	if c.HandoffTimeout <= 0 || c.SendTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.SendQueue <= 0 {
		return fmt.Errorf("send queue must be positive")
	}
	if c.AutoNextRound < 0 {
		return fmt.Errorf("auto next round delay must not be negative")
	}
	switch strings.ToLower(c.LedgerMode) {
	case ledger.ModeNone, ledger.ModeSQLite, ledger.ModePostgres:
	default:
		return fmt.Errorf("unknown ledger mode %q", c.LedgerMode)
	}
	if strings.EqualFold(c.LedgerMode, ledger.ModePostgres) && strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("ledger mode postgres needs DATABASE_URL")
	}
	return nil
}

// RendezvousPort is the numeric port of RendezvousAddr; the per-player
// port search starts right above it.
func (c Config) RendezvousPort() (int, error) {
	_, portText, err := net.SplitHostPort(c.RendezvousAddr)
	if err != nil {
		return 0, fmt.Errorf("bad rendezvous addr %q: %w", c.RendezvousAddr, err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port <= 0 || port >= 65535 {
		return 0, fmt.Errorf("bad rendezvous port %q", portText)
	}
	return port, nil
}

func envString(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envIntOrDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64OrDefault(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// envDuration accepts Go durations ("1500ms") or plain seconds ("3").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
