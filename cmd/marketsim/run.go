package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/talgya/micro-market/internal/config"
	"github.com/talgya/micro-market/internal/engine"
	"github.com/talgya/micro-market/internal/entropy"
	"github.com/talgya/micro-market/internal/events"
	"github.com/talgya/micro-market/internal/persistence"
)

var (
	configPath string
	envFile    string

	flagRounds        int
	flagSeed          int64
	flagHouseholds    int
	flagFirms         int
	flagCapitalPolicy string
	flagRefreshLabor  bool
	flagDatabase      string
	flagKafkaBrokers  []string
	flagKafkaTopic    string
	flagLogLevel      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long: `Run a simulation and print the population-averaged money and utility
per round. Settings come from defaults, then --config, then MARKETSIM_*
environment variables (a .env file is loaded first), then flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		setupLogger(cfg.Output.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runSimulation(ctx, cmd, cfg)
	},
}

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the default configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := config.Default().YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "YAML config file")
	f.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	f.IntVarP(&flagRounds, "rounds", "r", 0, "number of rounds")
	f.Int64Var(&flagSeed, "seed", 0, "random seed (0 picks one)")
	f.IntVar(&flagHouseholds, "households", 0, "number of households")
	f.IntVar(&flagFirms, "firms", 0, "number of firms")
	f.StringVar(&flagCapitalPolicy, "capital-policy", "", "reset-to-capital or carry-forward")
	f.BoolVar(&flagRefreshLabor, "refresh-labor", false, "restore household labor every round")
	f.StringVar(&flagDatabase, "db", "", "SQLite file to export rounds to")
	f.StringSliceVar(&flagKafkaBrokers, "kafka-brokers", nil, "Kafka brokers for round events")
	f.StringVar(&flagKafkaTopic, "kafka-topic", "", "Kafka topic for round events")
	f.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")
}

// loadConfig layers flags that were set explicitly on top of the loaded config.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("rounds") {
		cfg.Run.Rounds = flagRounds
	}
	if flags.Changed("seed") {
		cfg.Run.Seed = flagSeed
	}
	if flags.Changed("households") {
		cfg.Model.Households = flagHouseholds
	}
	if flags.Changed("firms") {
		cfg.Model.Firms = flagFirms
	}
	if flags.Changed("capital-policy") {
		cfg.Model.CapitalPolicy = flagCapitalPolicy
	}
	if flags.Changed("refresh-labor") {
		cfg.Model.RefreshLabor = flagRefreshLabor
	}
	if flags.Changed("db") {
		cfg.Output.Database = flagDatabase
	}
	if flags.Changed("kafka-brokers") {
		cfg.Output.KafkaBrokers = flagKafkaBrokers
	}
	if flags.Changed("kafka-topic") {
		cfg.Output.KafkaTopic = flagKafkaTopic
	}
	if flags.Changed("log-level") {
		cfg.Output.LogLevel = flagLogLevel
	}

	return cfg, cfg.Validate()
}

func runSimulation(ctx context.Context, cmd *cobra.Command, cfg config.Config) error {
	seed := cfg.Run.Seed
	if seed == 0 {
		seed = entropy.RandomSeed()
	}
	runID := uuid.New()
	slog.Info("starting run", "run", runID, "seed", seed, "rounds", cfg.Run.Rounds)

	src := entropy.NewSeeded(seed)
	sim, err := engine.NewSimulation(cfg.Model, src)
	if err != nil {
		return err
	}

	var sinks events.Multi

	if cfg.Output.Database != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Output.Database), 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		db, err := persistence.Open(cfg.Output.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.Output.Database)

		doc, err := cfg.YAML()
		if err != nil {
			return err
		}
		if err := db.SaveRun(persistence.Run{
			ID:         runID,
			Seed:       seed,
			Households: cfg.Model.Households,
			Firms:      cfg.Model.Firms,
			ConfigYAML: string(doc),
			StartedAt:  time.Now(),
		}); err != nil {
			return err
		}
		sinks = append(sinks, db.Exporter(runID, sim))
	}

	if len(cfg.Output.KafkaBrokers) > 0 {
		slog.Info("publishing round events", "brokers", cfg.Output.KafkaBrokers, "topic", cfg.Output.KafkaTopic)
		sinks = append(sinks, events.NewKafkaSink(cfg.Output.KafkaBrokers, cfg.Output.KafkaTopic))
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			slog.Warn("closing round sinks", "error", err)
		}
	}()

	e := engine.NewEngine(sim)
	if len(sinks) > 0 {
		e.OnRound = events.Publisher(sinks, runID, seed)
	}

	if err := e.Run(ctx, cfg.Run.Rounds); err != nil {
		return err
	}
	slog.Info("run finished", "run", runID, "journal_entries", sim.Journal.Len(), "draws", src.Draws())
	return printSeries(cmd, sim)
}

// printSeries writes the averaged money and utility series of sim.
func printSeries(cmd *cobra.Command, sim *engine.Simulation) error {
	return writeSeries(cmd.OutOrStdout(), sim.AverageMoneySeries(), sim.AverageUtilitySeries())
}

// writeSeries renders the averaged series as a table.
func writeSeries(out io.Writer, money, utility []float64) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "round\tavg money\tavg utility\t")
	for i := range money {
		fmt.Fprintf(w, "%d\t%.4f\t%.4f\t\n", i+1, money[i], utility[i])
	}
	return w.Flush()
}
