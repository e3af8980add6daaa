package main

import (
	"github.com/hupe1980/referralmesh/core"
	"github.com/spf13/cobra"
)

func newQueryCmd(flags *globalFlags) *cobra.Command {
	var (
		agentName    string
		showMessages bool
	)
	cmd := &cobra.Command{
		Use:     "query <a,b,c,d>...",
		Short:   "Ask an agent to resolve one or more queries",
		Args:    cobra.MinimumNArgs(1),
		Example: `referralmesh query --graph graph.json --agent default 1,0,0,0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			queries := make([]core.Vector, 0, len(args))
			for _, arg := range args {
				v, err := core.ParseVector(arg)
				if err != nil {
					return err
				}
				queries = append(queries, v)
			}

			m, err := loadMesh(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = m.Reset() }()

			for _, q := range queries {
				res, err := m.QueryAgent(cmd.Context(), agentName, q)
				if err != nil {
					return err
				}
				out := queryOutput{Agent: agentName, Query: q, Result: res}
				if showMessages {
					out.Messages = m.Messages(res.QueryID)
				}
				if err := printJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&agentName, "agent", "a", core.DefaultAgentName, "Agent that receives the queries")
	cmd.Flags().BoolVarP(&showMessages, "messages", "m", false, "Include the messages exchanged while resolving each query")
	return cmd
}
