package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chesslens/chesslens/internal/analysis"
	"github.com/chesslens/chesslens/internal/cache"
	"github.com/chesslens/chesslens/internal/config"
	"github.com/chesslens/chesslens/internal/engine"
	"github.com/chesslens/chesslens/internal/gamedb"
	"github.com/chesslens/chesslens/internal/games"
	"github.com/chesslens/chesslens/internal/logging"
	"github.com/chesslens/chesslens/internal/metrics"
	"github.com/chesslens/chesslens/internal/server"
	"github.com/chesslens/chesslens/internal/shutdown"
	"github.com/chesslens/chesslens/internal/ui"
)

// Version information injected at build time.
var (
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	var (
		showVersion bool
		configPath  string
		pgnPath     string
		importPath  string
		enginePath  string
	)
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&pgnPath, "pgn", "", "PGN file to view")
	flag.StringVar(&importPath, "import", "", "PGN file to import into the game database, then exit")
	flag.StringVar(&enginePath, "engine", "", "UCI engine binary (overrides config)")
	flag.Parse()

	if showVersion {
		fmt.Printf("chesslens\n")
		fmt.Printf("Git commit: %s\n", GitCommit)
		fmt.Printf("Build time: %s\n", BuildTime)
		os.Exit(0)
	}

	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if enginePath != "" {
		cfg.Engine.BinaryPath = enginePath
	}

	logger := logging.NewLoggerFromConfig(&logging.Config{
		Level:   cfg.Logging.Level,
		Format:  logging.LogFormat(cfg.Logging.Format),
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		Prefix:  cfg.Logging.Prefix,
	})
	logger.Info("starting chesslens", "version", cfg.App.Version, "commit", GitCommit)

	if importPath != "" {
		if err := runImport(cfg, importPath, logger); err != nil {
			logger.Fatal("import failed", "error", err)
		}
		return
	}

	if err := run(cfg, pgnPath, logger); err != nil {
		logger.Fatal("chesslens failed", "error", err)
	}
}

// runImport bulk-loads a PGN file into the game database and exits.
func runImport(cfg *config.Config, path string, logger logging.ContextLogger) error {
	db, err := gamedb.Open(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	imported, skipped, err := db.ImportPGN(path)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d games (%d skipped) into %s\n", imported, skipped, cfg.Database.Path)
	return nil
}

func run(cfg *config.Config, pgnPath string, logger logging.ContextLogger) error {
	loaded, err := loadGames(cfg, pgnPath, logger)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	shutdownMgr := shutdown.NewManager(logger)

	var snapshotCache *cache.LRU
	if cfg.Cache.Enabled {
		snapshotCache = cache.NewLRU(cfg.Cache.MaxItems)
	}

	limits := engine.Limits{Depth: cfg.Engine.Depth, MoveTimeMS: cfg.Engine.MoveTimeMS}
	controller := analysis.NewController(analysis.Config{
		Limits:      limits,
		StopTimeout: time.Duration(cfg.Engine.StopTimeoutSecs) * time.Second,
		Logger:      logger,
		Metrics:     collector,
		Cache:       snapshotCache,
	})

	supervisor := engine.NewSupervisor(engine.SupervisorConfig{
		BinaryPath:       cfg.Engine.BinaryPath,
		WorkingDir:       cfg.Engine.WorkingDir,
		HandshakeTimeout: time.Duration(cfg.Engine.HandshakeTimeoutSecs) * time.Second,
		AutoRestart:      cfg.Engine.AutoRestart,
		Options:          engineOptions(cfg),
	}, controller, logger, collector)
	supervisor.OnSession = func(sess *engine.Session) {
		controller.Bind(sess)
	}

	ctx := context.Background()
	if err := supervisor.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	shutdownMgr.Register("engine", func(context.Context) error {
		supervisor.Stop()
		return nil
	})

	if cfg.App.DebugAddr != "" {
		debug := server.NewDebugServer(cfg.App.DebugAddr, logger, supervisor)
		debug.Start()
		shutdownMgr.Register("debug-server", debug.Stop)
	}

	model := ui.NewModel(ui.ModelConfig{
		Games:      loaded,
		Controller: controller,
		Engine:     supervisor,
		Theme:      cfg.App.Theme,
		Logger:     logger,
	})
	defer model.Close()

	shutdownMgr.HandleSignals(10 * time.Second)

	program := tea.NewProgram(model, tea.WithAltScreen())
	go func() {
		<-shutdownMgr.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		shutdownMgr.Shutdown(10 * time.Second)
		return fmt.Errorf("run ui: %w", err)
	}

	shutdownMgr.Shutdown(10 * time.Second)
	return nil
}

// loadGames picks the game source: an explicit PGN file, or the configured
// database when one exists.
func loadGames(cfg *config.Config, pgnPath string, logger logging.ContextLogger) ([]*games.Game, error) {
	if pgnPath != "" {
		return games.LoadPGNFile(pgnPath, logger)
	}

	if cfg.Database.Path == "" {
		return nil, fmt.Errorf("no game source: pass -pgn or configure a database")
	}

	db, err := gamedb.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	records, err := db.Games(gamedb.Filter{}, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("database %s holds no games: import with -import", cfg.Database.Path)
	}

	loaded := make([]*games.Game, 0, len(records))
	for _, rec := range records {
		game, err := rec.Parse()
		if err != nil {
			logger.Warn("skipping unparseable stored game", "id", rec.ID, "error", err)
			continue
		}
		loaded = append(loaded, game)
	}
	if len(loaded) == 0 {
		return nil, fmt.Errorf("no stored game could be parsed")
	}
	return loaded, nil
}

func engineOptions(cfg *config.Config) map[string]string {
	opts := make(map[string]string)
	if cfg.Engine.MultiPV > 1 {
		opts["MultiPV"] = fmt.Sprintf("%d", cfg.Engine.MultiPV)
	}
	if cfg.Engine.HashMB > 0 {
		opts["Hash"] = fmt.Sprintf("%d", cfg.Engine.HashMB)
	}
	if cfg.Engine.Threads > 0 {
		opts["Threads"] = fmt.Sprintf("%d", cfg.Engine.Threads)
	}
	return opts
}
