package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	resetDB    bool
	resetFiles bool
	resetYes   bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (exported runs, annotated images)",
	Long:  "Clears stored data. By default, it resets everything. Use flags to clear specific components.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetFiles {
			resetDB = true
			resetFiles = true
		}

		reader := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		if resetDB {
			if DB == nil {
				fmt.Fprintln(out, "⏭️  No database configured, skipping.")
			} else if resetYes || confirm(reader, out, "⚠️  Are you sure you want to DROP all export tables?") {
				fmt.Fprintln(out, "🗑️  Clearing Database...")
				if err := DB.Reset(cmd.Context()); err != nil {
					return &runError{context: "Failed to reset database", err: err}
				}
			}
		}

		if resetFiles {
			if opts.RenderDir == "" {
				fmt.Fprintln(out, "⏭️  No --render-dir given, skipping annotated images.")
			} else if resetYes || confirm(reader, out, fmt.Sprintf("⚠️  Are you sure you want to delete %s?", opts.RenderDir)) {
				fmt.Fprintln(out, "🗑️  Clearing Annotated Images...")
				removeDir(opts.RenderDir)
			}
		}

		fmt.Fprintln(out, "✨ Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "runs", false, "Drop the exported run tables")
	resetCmd.Flags().BoolVar(&resetFiles, "files", false, "Delete the --render-dir directory")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
