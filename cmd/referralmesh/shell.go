package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/hupe1980/referralmesh"
	"github.com/hupe1980/referralmesh/core"
	"github.com/hupe1980/referralmesh/graph"
	"github.com/spf13/cobra"
)

const shellHelp = `Commands:
  load <path>              replace the network with a graph document
  query <agent> <a,b,c,d>  resolve a query starting at agent
  dump <agent>             print an agent's profile and beliefs
  messages [query-id]      print journaled messages (all if no id)
  names                    list registered agents
  selftest                 run generated queries against every agent
  reset                    terminate every agent
  exit                     leave the shell`

var errQuit = errors.New("quit")

func newShellCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session against a live network",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newMesh(cmd, flags)
			if err != nil {
				return err
			}
			defer func() { _ = m.Reset() }()

			sh := &shell{mesh: m, out: cmd.OutOrStdout()}
			if flags.graphPath != "" {
				if err := sh.exec(cmd.Context(), "load "+flags.graphPath); err != nil {
					return err
				}
			}
			return sh.run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

// shell interprets one command per line against a mesh.
type shell struct {
	mesh *referralmesh.Mesh
	out  io.Writer
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	if in != os.Stdin {
		return s.runSimple(ctx, in)
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "referralmesh> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".referralmesh_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return s.runSimple(ctx, in)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if quit := s.handle(ctx, line); quit {
			return nil
		}
	}
}

func (s *shell) runSimple(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if quit := s.handle(ctx, scanner.Text()); quit {
			return nil
		}
	}
	return scanner.Err()
}

// handle executes line and prints any error. It reports whether the shell
// should exit.
func (s *shell) handle(ctx context.Context, line string) bool {
	err := s.exec(ctx, line)
	if errors.Is(err, errQuit) {
		return true
	}
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return ctx.Err() != nil
}

func (s *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	args := fields[1:]

	switch fields[0] {
	case "exit", "quit":
		return errQuit
	case "help":
		_, err := fmt.Fprintln(s.out, shellHelp)
		return err
	case "load":
		if len(args) != 1 {
			return fmt.Errorf("usage: load <path>")
		}
		nodes, err := graph.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := s.mesh.LoadNodes(ctx, nodes); err != nil {
			return err
		}
		_, err = fmt.Fprintf(s.out, "loaded %d agents\n", len(nodes))
		return err
	case "query":
		if len(args) != 2 {
			return fmt.Errorf("usage: query <agent> <a,b,c,d>")
		}
		v, err := core.ParseVector(args[1])
		if err != nil {
			return err
		}
		res, err := s.mesh.QueryAgent(ctx, args[0], v)
		if err != nil {
			return err
		}
		return printJSON(s.out, queryOutput{Agent: args[0], Query: v, Result: res})
	case "dump":
		if len(args) != 1 {
			return fmt.Errorf("usage: dump <agent>")
		}
		st, err := s.mesh.DumpState(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(s.out, st)
	case "messages":
		if len(args) == 0 {
			return printJSON(s.out, s.mesh.AllMessages())
		}
		return printJSON(s.out, s.mesh.Messages(args[0]))
	case "names":
		_, err := fmt.Fprintln(s.out, strings.Join(s.mesh.Names(), "\n"))
		return err
	case "selftest":
		report, err := s.mesh.SelfTest(ctx)
		if err != nil {
			return err
		}
		return printJSON(s.out, report)
	case "reset":
		return s.mesh.Reset()
	default:
		return fmt.Errorf("unknown command %q (try help)", fields[0])
	}
}
