// Package cli wires the etracker command tree: transaction and category
// CRUD, summaries, and snapshot backup/restore against a local store with
// optional remote upload.
package cli

import (
	"io"

	"github.com/spf13/cobra"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	globals := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:           "etracker",
		Short:         "Personal finance tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)

	cmd.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&globals.StorePath, "store", "", "Path to the store database file")
	cmd.PersistentFlags().BoolVar(&globals.JSON, "json", false, "Print machine-readable JSON output")

	deps := commandDeps{out: out, globals: globals, build: build}

	cmd.AddCommand(newTxCommand(deps))
	cmd.AddCommand(newCategoryCommand(deps))
	cmd.AddCommand(newBackupCommand(deps))
	cmd.AddCommand(newVersionCommand(deps))
	cmd.InitDefaultCompletionCmd()
	return cmd
}
