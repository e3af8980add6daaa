package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hupe1980/referralmesh"
	"github.com/hupe1980/referralmesh/config"
	"github.com/hupe1980/referralmesh/core"
	"github.com/hupe1980/referralmesh/graph"
	"github.com/hupe1980/referralmesh/logging"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	graphPath  string
	logLevel   string
	selfTest   bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "referralmesh",
		Short:         "Resolve expertise queries through a network of referring agents",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVarP(&flags.graphPath, "graph", "g", "", "Path to a JSON or YAML graph document")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&flags.selfTest, "self-test", false, "Run the self-test pass after loading the graph")

	cmd.AddCommand(
		newQueryCmd(flags),
		newDumpCmd(flags),
		newSelfTestCmd(flags),
		newValidateCmd(flags),
		newShellCmd(flags),
	)
	return cmd
}

// newMesh builds a mesh from the config file, environment and flags. The
// self-test pass only runs when requested on the command line.
func newMesh(cmd *cobra.Command, flags *globalFlags) (*referralmesh.Mesh, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	cfg.SelfTest.Enabled = flags.selfTest
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})

	return referralmesh.New(func(o *referralmesh.Options) {
		o.Config = cfg
		o.Logger = logger.WithComponent("cli")
	})
}

// loadMesh builds a mesh and loads the --graph document into it.
func loadMesh(cmd *cobra.Command, flags *globalFlags) (*referralmesh.Mesh, error) {
	if flags.graphPath == "" {
		return nil, fmt.Errorf("--graph is required")
	}
	nodes, err := graph.ReadFile(flags.graphPath)
	if err != nil {
		return nil, err
	}
	m, err := newMesh(cmd, flags)
	if err != nil {
		return nil, err
	}
	if err := m.LoadNodes(cmd.Context(), nodes); err != nil {
		_ = m.Reset()
		return nil, err
	}
	return m, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// queryOutput is the printed form of a query outcome.
type queryOutput struct {
	Agent    string           `json:"agent"`
	Query    core.Vector      `json:"query"`
	Result   core.Result      `json:"result"`
	Messages []core.HopRecord `json:"messages,omitempty"`
}
