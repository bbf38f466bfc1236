/*
main.go - Application entry point

PURPOSE:
  Command line for the match engine. "serve" runs the HTTP API; the other
  subcommands run one engine operation against the configured store, for
  operators and scripts.

COMMANDS:
  serve                              Start the HTTP server
  quote                              Price a home offline
  approve <request|job> <id>         Accept the open assignment
  reject  <request|job> <id>         Decline it and rematch
  assign  <request|job> <id>         Manual (admin) assignment
  history <request|job> <id>         Print the assignment history

GLOBAL FLAGS:
  --config   YAML config file (see config package for keys)
  --store    Override store.driver (sqlite | rest | memory)
  --db       Override store.sqlite_path, ":memory:" for in-memory

ENVIRONMENT:
  MATCH_* variables override the config file, e.g. MATCH_STORE_DRIVER.

EXAMPLES:
  # Run with file database
  ./match-engine serve --db ./data/match.db

  # Reject from the command line
  ./match-engine reject request req-1001 --provider p-anna --reason "fully booked"

SEE ALSO:
  - serve.go: Server lifecycle and graceful shutdown
  - commands.go: One-shot engine commands
  - config/config.go: Configuration sources
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/match-engine/config"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
	driver     string
	dbPath     string

	cfg config.Config
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "match-engine",
		Short:         "Assignment lifecycle and auto-rematch engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			// Explicit flags win over file and environment
			if opts.driver != "" {
				cfg.Store.Driver = opts.driver
			}
			if opts.dbPath != "" {
				cfg.Store.SQLitePath = opts.dbPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.driver, "store", "", "store driver (sqlite|rest|memory)")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newQuoteCommand(opts))
	cmd.AddCommand(newApproveCommand(opts))
	cmd.AddCommand(newRejectCommand(opts))
	cmd.AddCommand(newAssignCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))

	return cmd
}
