package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"

	"github.com/imaddar/holdem-engine/internal/domain"
	"github.com/imaddar/holdem-engine/internal/persistence"
	"github.com/imaddar/holdem-engine/internal/policy"
	"github.com/imaddar/holdem-engine/internal/rules"
	"github.com/imaddar/holdem-engine/internal/statemachine"
	"github.com/imaddar/holdem-engine/internal/tablerunner"
)

const (
	modeSim   = "sim"
	modeHuman = "human"

	humanPlayerID = "you"
)

type cliConfig struct {
	TableID    string
	Players    int
	Chips      uint32
	SmallBlind uint32
	BigBlind   uint32
	Hands      int
	Seed       int64
	Mode       string
	Policy     string
	DBDriver   string
	DBDSN      string
	ReportJSON string
	LogLevel   string
	NoColor    bool
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

// parseConfig reads flags, falling back to HOLDEM_* environment variables
// for anything not given on the command line.
func parseConfig(args []string, getenv func(string) string) (cliConfig, error) {
	defaults := domain.DefaultGameConfig()
	fs := flag.NewFlagSet("holdem", flag.ContinueOnError)

	var (
		tableID    = fs.String("table", envString(getenv, "HOLDEM_TABLE", "local-table-1"), "table id used in reports and hand history")
		players    = fs.Int("players", envInt(getenv, "HOLDEM_PLAYERS", defaults.NumPlayers), "number of players (2-10)")
		chips      = fs.Uint("chips", uint(envInt(getenv, "HOLDEM_CHIPS", int(defaults.StartingChips))), "starting chips per player")
		smallBlind = fs.Uint("sb", uint(envInt(getenv, "HOLDEM_SB", int(defaults.SmallBlind))), "small blind")
		bigBlind   = fs.Uint("bb", uint(envInt(getenv, "HOLDEM_BB", int(defaults.BigBlind))), "big blind")
		hands      = fs.Int("hands", envInt(getenv, "HOLDEM_HANDS", 10), "number of hands to play")
		seed       = fs.Int64("seed", int64(envInt(getenv, "HOLDEM_SEED", 0)), "shuffle seed; 0 uses a crypto shuffle")
		mode       = fs.String("mode", envString(getenv, "HOLDEM_MODE", modeSim), "sim or human")
		botPolicy  = fs.String("policy", envString(getenv, "HOLDEM_POLICY", "strength"), "bot policy: "+strings.Join(policy.Names(), ", "))
		dbDriver   = fs.String("db-driver", envString(getenv, "HOLDEM_DB_DRIVER", "none"), "hand history store: none, postgres or sqlite")
		dbDSN      = fs.String("db-dsn", envString(getenv, "HOLDEM_DB_DSN", ""), "database DSN (postgres) or file path (sqlite)")
		reportJSON = fs.String("report-json", envString(getenv, "HOLDEM_REPORT_JSON", ""), "write the run report as JSON to this path")
		logLevel   = fs.String("log-level", envString(getenv, "HOLDEM_LOG_LEVEL", "info"), "debug, info, warn or error")
		noColor    = fs.Bool("no-color", envBool(getenv, "HOLDEM_NO_COLOR", false), "disable coloured output")
	)
	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	amounts := make(map[string]uint32, 3)
	for name, raw := range map[string]uint{"chips": *chips, "sb": *smallBlind, "bb": *bigBlind} {
		amount, err := chipAmount(name, raw)
		if err != nil {
			return cliConfig{}, err
		}
		amounts[name] = amount
	}

	cfg := cliConfig{
		TableID:    strings.TrimSpace(*tableID),
		Players:    *players,
		Chips:      amounts["chips"],
		SmallBlind: amounts["sb"],
		BigBlind:   amounts["bb"],
		Hands:      *hands,
		Seed:       *seed,
		Mode:       strings.ToLower(strings.TrimSpace(*mode)),
		Policy:     strings.ToLower(strings.TrimSpace(*botPolicy)),
		DBDriver:   strings.ToLower(strings.TrimSpace(*dbDriver)),
		DBDSN:      strings.TrimSpace(*dbDSN),
		ReportJSON: strings.TrimSpace(*reportJSON),
		LogLevel:   strings.ToLower(strings.TrimSpace(*logLevel)),
		NoColor:    *noColor,
	}
	if err := cfg.validate(); err != nil {
		return cliConfig{}, err
	}
	return cfg, nil
}

func (c cliConfig) validate() error {
	if err := c.gameConfig().Validate(); err != nil {
		return err
	}
	if total := uint64(c.Players) * uint64(c.Chips); total > math.MaxUint32 {
		return fmt.Errorf("%d players with %d chips each exceed %d chips at the table", c.Players, c.Chips, uint64(math.MaxUint32))
	}
	if c.Hands <= 0 {
		return fmt.Errorf("hands must be positive, got %d", c.Hands)
	}
	switch c.Mode {
	case modeSim, modeHuman:
	default:
		return fmt.Errorf("unknown mode %q (want %s or %s)", c.Mode, modeSim, modeHuman)
	}
	if _, err := policy.ByName(c.Policy); err != nil {
		return err
	}
	switch c.DBDriver {
	case "none", "":
	case "sqlite":
	case "postgres":
		if c.DBDSN == "" {
			return fmt.Errorf("db-driver postgres needs -db-dsn")
		}
	default:
		return fmt.Errorf("unknown db driver %q", c.DBDriver)
	}
	if c.TableID == "" {
		return fmt.Errorf("table id must not be empty")
	}
	return nil
}

// chipAmount rejects values that do not fit the engine's uint32 chip counts.
func chipAmount(name string, raw uint) (uint32, error) {
	if uint64(raw) > math.MaxUint32 {
		return 0, fmt.Errorf("%s must be at most %d, got %d", name, uint64(math.MaxUint32), raw)
	}
	return uint32(raw), nil
}

func (c cliConfig) gameConfig() domain.GameConfig {
	return domain.GameConfig{
		NumPlayers:    c.Players,
		StartingChips: c.Chips,
		SmallBlind:    c.SmallBlind,
		BigBlind:      c.BigBlind,
	}
}

func (c cliConfig) playerIDs() []string {
	ids := make([]string, 0, c.Players)
	for i := 0; i < c.Players; i++ {
		if i == 0 && c.Mode == modeHuman {
			ids = append(ids, humanPlayerID)
			continue
		}
		ids = append(ids, fmt.Sprintf("bot-%d", i+1))
	}
	return ids
}

func run(ctx context.Context, cfg cliConfig, in io.Reader, out io.Writer) error {
	if cfg.NoColor {
		pterm.DisableColor()
	}
	logger := newLogger(cfg.LogLevel, out)

	shuffler := rules.NewCryptoShuffler()
	if cfg.Seed != 0 {
		shuffler = rules.NewSeededShuffler(cfg.Seed)
	}
	engine, err := statemachine.NewEngine(cfg.gameConfig(),
		statemachine.WithShuffler(shuffler),
		statemachine.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	state, err := engine.NewGame(cfg.playerIDs())
	if err != nil {
		return err
	}

	bot, err := policy.ByName(cfg.Policy)
	if err != nil {
		return err
	}
	var provider tablerunner.ActionProvider = tablerunner.PolicyProvider(bot)
	var human string
	if cfg.Mode == modeHuman {
		human = humanPlayerID
		provider = tablerunner.SeatProviders{
			Players: map[string]tablerunner.ActionProvider{
				humanPlayerID: announce(newHumanProvider(engine, in, out), out, "you"),
			},
			Default: announce(provider, out, "bot"),
		}
	}

	timeline := make([]tablerunner.ActionEvent, 0, 64)
	runnerConfig := tablerunner.RunnerConfig{
		Logger:   logger,
		OnAction: func(event tablerunner.ActionEvent) { timeline = append(timeline, event) },
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	var recorder *persistence.Recorder
	if repo != nil {
		recorder = persistence.NewRecorder(repo, cfg.TableID, logger)
		runnerConfig = recorder.Attach(runnerConfig)
		if err := recorder.Begin(cfg.Hands); err != nil {
			return err
		}
	}

	logger.Info("starting table",
		"table_id", cfg.TableID,
		"mode", cfg.Mode,
		"players", cfg.Players,
		"hands_to_run", cfg.Hands,
		"policy", cfg.Policy,
	)

	runner := tablerunner.New(engine, provider, runnerConfig)
	result, runErr := runner.RunTable(ctx, tablerunner.RunTableInput{HandsToRun: cfg.Hands, State: state})
	if recorder != nil {
		if err := recorder.Finish(runErr); err != nil {
			logger.Error("hand history incomplete", "error", err)
		}
	}

	report := buildRunReport(buildRunReportInput{
		Mode:           cfg.Mode,
		TableID:        cfg.TableID,
		HandsRequested: cfg.Hands,
		HumanPlayer:    human,
		Initial:        state,
		Result:         result,
		Timeline:       timeline,
	})
	rendered, err := renderRunOutput(report)
	if err != nil {
		return err
	}
	fmt.Fprint(out, rendered)

	if cfg.ReportJSON != "" {
		if err := writeRunReportJSON(cfg.ReportJSON, report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info("report written", "path", cfg.ReportJSON)
	}
	return runErr
}

func openRepository(ctx context.Context, cfg cliConfig) (persistence.Repository, func(), error) {
	noop := func() {}
	switch cfg.DBDriver {
	case "sqlite":
		path := cfg.DBDSN
		if path == "" {
			path = "holdem.db"
		}
		db, err := persistence.OpenSQLite(ctx, path)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite: %w", err)
		}
		return persistence.NewSQLiteRepository(db), func() { _ = db.Close() }, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DBDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(4)
		db.SetConnMaxLifetime(5 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("database ping failed: %w", err)
		}
		if err := persistence.MigratePostgres(pingCtx, db); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("database migration failed: %w", err)
		}
		return persistence.NewPostgresRepository(db), func() { _ = db.Close() }, nil
	default:
		return nil, noop, nil
	}
}

func newLogger(level string, out io.Writer) *slog.Logger {
	ptermLevel := pterm.LogLevelInfo
	switch level {
	case "debug":
		ptermLevel = pterm.LogLevelDebug
	case "warn":
		ptermLevel = pterm.LogLevelWarn
	case "error":
		ptermLevel = pterm.LogLevelError
	}
	return slog.New(pterm.NewSlogHandler(pterm.DefaultLogger.WithLevel(ptermLevel).WithWriter(out)))
}

func envString(getenv func(string) string, key string, fallback string) string {
	if raw := strings.TrimSpace(getenv(key)); raw != "" {
		return raw
	}
	return fallback
}

func envInt(getenv func(string) string, key string, fallback int) int {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envBool(getenv func(string) string, key string, fallback bool) bool {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
