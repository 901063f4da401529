// perfcrew runs the campaign-performance analysis crew.
//
// Usage:
//
//	perfcrew run                         # run the crew with the default query
//	perfcrew run --query "..."           # run with a custom query
//	perfcrew migrate                     # create or upgrade database tables
//	perfcrew seed                        # insert demo campaign data
//	perfcrew health                      # probe database and LLM provider
//	perfcrew version                     # show build info
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/datatypes"

	"github.com/hypermindz/perfcrew/analytics"
	"github.com/hypermindz/perfcrew/config"
	"github.com/hypermindz/perfcrew/crew"
	"github.com/hypermindz/perfcrew/internal/telemetry"
	"github.com/hypermindz/perfcrew/llm"
	"github.com/hypermindz/perfcrew/llm/providers"
	"github.com/hypermindz/perfcrew/llm/providers/deepseek"
	"github.com/hypermindz/perfcrew/llm/providers/openai"
	"github.com/hypermindz/perfcrew/llm/tokenizer"
	"github.com/hypermindz/perfcrew/llm/tools"
	"github.com/hypermindz/perfcrew/store"
)

// Build-time variables, injected via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCrew(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "seed":
		runSeed(os.Args[2:])
	case "health":
		runHealth(os.Args[2:])
	case "version":
		printVersion()
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runCrew(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "configs/config.yaml", "path to configuration file")
	query := fs.String("query", "", "user query driving the crew run")
	agentsPath := fs.String("agents", "", "agents roster file (overrides config)")
	tasksPath := fs.String("tasks", "", "tasks roster file (overrides config)")
	outputPath := fs.String("output", "", "report output file (overrides config)")
	process := fs.String("process", "", "crew process: sequential or hierarchical")
	fs.Parse(args)

	cfg, err := config.NewLoader().
		WithConfigPath(*configPath).
		WithValidator(func(c *config.Config) error { return c.Validate() }).
		Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *query, *agentsPath, *tasksPath, *outputPath, *process)

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	if cfg.LLM.APIKey == "" {
		logger.Error("LLM API key is not configured; set OPENAI_API_KEY or PERFCREW_LLM_API_KEY")
		os.Exit(1)
	}

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	tokenizer.RegisterOpenAITokenizers()

	ctx := context.Background()

	registry := tools.NewRegistry(logger)
	var st *store.Store
	st, err = store.Open(storeConfig(cfg.Database), logger)
	if err != nil {
		// Rosters without tool-bearing agents still run; a roster that
		// needs tools fails at build time below.
		logger.Warn("database unavailable, analytics tools disabled", zap.Error(err))
		st = nil
	} else {
		defer st.Close()
		svc := analytics.NewService(st, logger)
		if err := svc.Register(registry); err != nil {
			logger.Error("failed to register analytics tools", zap.Error(err))
			os.Exit(1)
		}
	}

	provider := buildProvider(cfg, logger)

	agentsFile := cfg.Crew.AgentsFile
	tasksFile := cfg.Crew.TasksFile
	agents, err := crew.LoadAgents(agentsFile)
	if err != nil {
		logger.Error("failed to load agents roster", zap.String("path", agentsFile), zap.Error(err))
		os.Exit(1)
	}
	taskRoster, err := crew.LoadTasks(tasksFile)
	if err != nil {
		logger.Error("failed to load tasks roster", zap.String("path", tasksFile), zap.Error(err))
		os.Exit(1)
	}

	inputs := buildInputs(cfg)

	c, err := crew.Build(crew.BuildConfig{
		Name:          cfg.Crew.Name,
		Process:       crew.ProcessType(cfg.Crew.Process),
		Verbose:       cfg.Crew.Verbose,
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		MaxIterations: cfg.Crew.MaxIterations,
		Inputs:        inputs,
		OutputFile:    cfg.Crew.OutputFile,
	}, agents, taskRoster, provider, registry, logger)
	if err != nil {
		logger.Error("failed to build crew", zap.Error(err))
		os.Exit(1)
	}

	result, err := c.Kickoff(ctx)
	if err != nil {
		logger.Error("crew run failed", zap.Error(err))
		os.Exit(1)
	}

	if st != nil {
		saveConversation(ctx, st, inputs["query"], result, logger)
	}

	logger.Info("crew run succeeded",
		zap.Duration("duration", result.Duration),
		zap.String("report", c.ReportPath()))
	fmt.Printf("Report written to %s\n", c.ReportPath())
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "configs/config.yaml", "path to configuration file")
	fs.Parse(args)

	cfg, logger := loadConfigAndLogger(*configPath)
	defer logger.Sync()

	st := mustOpenStore(cfg, logger)
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		logger.Error("migration failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Println("Migration complete")
}

func runSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath := fs.String("config", "configs/config.yaml", "path to configuration file")
	fs.Parse(args)

	cfg, logger := loadConfigAndLogger(*configPath)
	defer logger.Sync()

	st := mustOpenStore(cfg, logger)
	defer st.Close()

	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		logger.Error("migration failed", zap.Error(err))
		os.Exit(1)
	}
	if err := st.Seed(ctx); err != nil {
		logger.Error("seeding failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Println("Seed complete")
}

func runHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	configPath := fs.String("config", "configs/config.yaml", "path to configuration file")
	fs.Parse(args)

	cfg, logger := loadConfigAndLogger(*configPath)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	healthy := true

	st, err := store.Open(storeConfig(cfg.Database), logger)
	if err != nil {
		fmt.Printf("database: FAIL (%v)\n", err)
		healthy = false
	} else {
		defer st.Close()
		if err := st.Ping(ctx); err != nil {
			fmt.Printf("database: FAIL (%v)\n", err)
			healthy = false
		} else {
			fmt.Println("database: OK")
		}
	}

	if cfg.LLM.APIKey == "" {
		fmt.Println("llm: SKIP (no API key configured)")
	} else {
		provider := buildProvider(cfg, logger)
		status, err := provider.HealthCheck(ctx)
		if err != nil || !status.Healthy {
			fmt.Printf("llm: FAIL (%v)\n", err)
			healthy = false
		} else {
			fmt.Printf("llm: OK (%s, %s)\n", provider.Name(), status.Latency)
		}
	}

	if !healthy {
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("perfcrew %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`perfcrew - campaign performance analysis crew

Usage:
  perfcrew <command> [options]

Commands:
  run       Run the analysis crew and write the report
  migrate   Create or upgrade database tables
  seed      Insert demo campaign data (development)
  health    Probe database and LLM provider reachability
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>    Configuration file (default configs/config.yaml)
  --query <text>     Query driving the run
  --agents <path>    Agents roster file
  --tasks <path>     Tasks roster file
  --output <path>    Report output file
  --process <name>   sequential or hierarchical

Examples:
  perfcrew seed
  perfcrew run --query "Show me the top 5 performing campaigns"
  perfcrew run --config /etc/perfcrew/config.yaml --output report.md`)
}

func applyFlags(cfg *config.Config, query, agents, tasks, output, process string) {
	if query != "" {
		if cfg.Crew.Inputs == nil {
			cfg.Crew.Inputs = make(map[string]string)
		}
		cfg.Crew.Inputs["query"] = query
	}
	if agents != "" {
		cfg.Crew.AgentsFile = agents
	}
	if tasks != "" {
		cfg.Crew.TasksFile = tasks
	}
	if output != "" {
		cfg.Crew.OutputFile = output
	}
	if process != "" {
		cfg.Crew.Process = process
	}
}

// buildInputs resolves the run inputs, always providing current_year.
func buildInputs(cfg *config.Config) map[string]string {
	inputs := make(map[string]string, len(cfg.Crew.Inputs)+1)
	for k, v := range cfg.Crew.Inputs {
		inputs[k] = v
	}
	if _, ok := inputs["current_year"]; !ok {
		inputs["current_year"] = strconv.Itoa(time.Now().Year())
	}
	return inputs
}

// buildProvider assembles the provider chain: base provider, retry
// wrapper, response cache.
func buildProvider(cfg *config.Config, logger *zap.Logger) llm.Provider {
	var base llm.Provider
	switch cfg.LLM.Provider {
	case "deepseek":
		base = deepseek.New(deepseek.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}, logger)
	default:
		base = openai.New(openai.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}, logger)
	}

	retryCfg := providers.DefaultRetryConfig()
	if cfg.LLM.MaxRetries > 0 {
		retryCfg.MaxRetries = cfg.LLM.MaxRetries
	}
	wrapped := llm.Provider(providers.NewRetryableProvider(base, retryCfg, logger))

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	cache := llm.NewResponseCache(rdb, llm.DefaultCacheConfig(), logger)
	return llm.NewCachedProvider(wrapped, cache, logger)
}

func storeConfig(db config.DatabaseConfig) store.Config {
	return store.Config{
		Driver:          db.Driver,
		DSN:             db.DSN(),
		MaxIdleConns:    db.MaxIdleConns,
		MaxOpenConns:    db.MaxOpenConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
	}
}

func loadConfigAndLogger(configPath string) (*config.Config, *zap.Logger) {
	cfg, err := config.NewLoader().WithConfigPath(configPath).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg, initLogger(cfg.Log)
}

func mustOpenStore(cfg *config.Config, logger *zap.Logger) *store.Store {
	st, err := store.Open(storeConfig(cfg.Database), logger)
	if err != nil {
		logger.Error("failed to open database", zap.Error(err))
		os.Exit(1)
	}
	return st
}

// saveConversation records the run's query and final output. Persistence
// failures are logged, not fatal: the report is already on disk.
func saveConversation(ctx context.Context, st *store.Store, query string, result *crew.CrewResult, logger *zap.Logger) {
	response, err := json.Marshal(map[string]any{
		"final_output": result.FinalOutput,
		"task_order":   result.TaskOrder,
		"duration_ms":  result.Duration.Milliseconds(),
	})
	if err != nil {
		logger.Warn("failed to encode conversation", zap.Error(err))
		return
	}

	conv := &store.AgentConversation{
		AgentType:     "performance_crew",
		UserQuery:     query,
		AgentResponse: datatypes.JSON(response),
	}
	if err := st.SaveConversation(ctx, conv); err != nil {
		logger.Warn("failed to save conversation", zap.Error(err))
	}
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
