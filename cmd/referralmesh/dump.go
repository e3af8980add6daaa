package main

import (
	"fmt"

	"github.com/hupe1980/referralmesh/core"
	"github.com/spf13/cobra"
)

func newDumpCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dump [agent]...",
		Short: "Print the profile and neighbor beliefs of agents (all if none given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMesh(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = m.Reset() }()

			names := args
			if len(names) == 0 {
				names = m.Names()
			}
			states := make([]core.State, 0, len(names))
			for _, name := range names {
				st, err := m.DumpState(cmd.Context(), name)
				if err != nil {
					return err
				}
				states = append(states, st)
			}
			return printJSON(cmd.OutOrStdout(), states)
		},
	}
}

func newSelfTestCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Load the graph and run generated queries against every agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			selfTest := flags.selfTest
			flags.selfTest = false
			defer func() { flags.selfTest = selfTest }()

			m, err := loadMesh(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = m.Reset() }()

			report, err := m.SelfTest(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newValidateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the graph document loads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := loadMesh(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = m.Reset() }()

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "graph ok: %d agents\n", len(m.Names()))
			return err
		},
	}
}
