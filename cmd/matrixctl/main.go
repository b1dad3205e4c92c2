package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matheus3301/matrixtui/internal/profile"
)

// options are the persistent flags shared by every command.
type options struct {
	profile string
	json    bool
}

func (o *options) name() (string, error) {
	name := profile.Resolve(o.profile)
	if err := profile.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "matrixctl",
		Short: "Inspect a matrixtui profile",
		Long: `matrixctl reads the state a matrixtui profile leaves on disk and asks a
running client for the health of its accounts.

Available commands:
  status   - Show the sync state of each account in a running client
  accounts - List the saved logins
  rooms    - List archived rooms
  search   - Search archived messages
  stats    - Show archive counters
  config   - Show profile paths`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.profile, "profile", "", "profile name (overrides config default)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "output in JSON format")

	root.AddCommand(
		newStatusCmd(opts),
		newAccountsCmd(opts),
		newRoomsCmd(opts),
		newSearchCmd(opts),
		newStatsCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}
