package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/zeusync/behaviour/internal/config"
	"github.com/zeusync/behaviour/internal/core/bt"
	"github.com/zeusync/behaviour/internal/core/observability/log"
	"github.com/zeusync/behaviour/internal/injector"
	"github.com/zeusync/behaviour/internal/server"
)

var runCmd = &cobra.Command{
	Use:   "run [template]",
	Short: "Spawn agents from a template and tick them",
	Long: `Loads the template, spawns the configured number of agents and ticks them
every interval until the round limit is reached or the process is interrupted.
A summary of every agent is printed on exit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAgents,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "YAML config file")
	runCmd.Flags().IntP("agents", "n", 0, "number of agents to spawn")
	runCmd.Flags().Int("workers", 0, "agents ticked concurrently (0 = all)")
	runCmd.Flags().Duration("interval", 0, "time between tick rounds")
	runCmd.Flags().Int("rounds", 0, "stop after this many rounds (0 = until interrupted)")
	runCmd.Flags().String("http-addr", "", "serve the status API and metrics on this address")
	runCmd.Flags().String("log-level", "", "debug, info, warn or error")
}

// resolveConfig layers explicitly set flags over the config file or defaults.
func resolveConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	cfg := config.Default()
	flags := cmd.Flags()
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if len(args) > 0 {
		cfg.Template = args[0]
	}
	if flags.Changed("agents") {
		cfg.Agents, _ = flags.GetInt("agents")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("interval") {
		cfg.TickInterval, _ = flags.GetDuration("interval")
	}
	if flags.Changed("rounds") {
		cfg.Rounds, _ = flags.GetInt("rounds")
	}
	if flags.Changed("http-addr") {
		cfg.HTTPAddr, _ = flags.GetString("http-addr")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	if cfg.Template == "" {
		return cfg, errors.New("no template given: pass it as an argument or set 'template' in the config")
	}
	return cfg, cfg.Validate()
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	manager, cleanup, err := injector.InitializeManager(cfg, reg)
	if err != nil {
		return err
	}
	defer cleanup()
	logger := manager.Logger()
	defer func() { _ = logger.Sync() }()

	tpl, err := bt.LoadFile(cfg.Template)
	if err != nil {
		return err
	}
	tree, err := tpl.Build(bt.WithTreeLogger(logger.Named("tree")))
	if err != nil {
		return err
	}
	for range cfg.Agents {
		if _, err := manager.Spawn(tree); err != nil {
			return err
		}
	}
	defer manager.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		srv := server.NewHTTPServer(manager,
			server.WithTemplate(tree),
			server.WithGatherer(reg),
			server.WithEvents(manager.Events()),
			server.WithLogger(logger.Named("http")),
		)
		if _, err := srv.Start(cfg.HTTPAddr); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	logger.Info("running agents",
		log.String("template", tree.Name()),
		log.Int("agents", manager.Len()),
		log.Duration("interval", cfg.TickInterval),
		log.Int("rounds", cfg.Rounds),
	)
	if err := manager.Run(ctx, cfg.TickInterval, cfg.Rounds); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tRUNNER\tSTATE\tTICKS")
	for _, s := range manager.Statuses() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.ID, s.Name, s.State, s.Ticks)
	}
	return w.Flush()
}
