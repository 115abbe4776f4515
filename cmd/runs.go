package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var errNoDatabase = errors.New("no database configured (use --db, DATABASE_URL or POSTGRES_HOST)")

var runsCmd = &cobra.Command{
	Use:   "runs [run_id]",
	Short: "List exported runs, or print the results of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if DB == nil {
			return &runError{context: "Cannot list runs", err: errNoDatabase}
		}
		if len(args) == 1 {
			return runShowRun(cmd, args[0])
		}
		return runListRuns(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runListRuns(cmd *cobra.Command) error {
	runs, err := DB.ListRuns(cmd.Context())
	if err != nil {
		return &runError{context: "Failed to list runs", err: err}
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found in database.")
		return nil
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.ID.String(),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Gallery,
			r.Probe,
			strconv.FormatFloat(r.Threshold, 'f', 2, 64),
			strconv.Itoa(r.Probes),
			strconv.Itoa(r.Faces),
		}
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Created", "Gallery", "Probe", "Threshold", "Probes", "Faces"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	))
	return nil
}

func runShowRun(cmd *cobra.Command, arg string) error {
	id, err := uuid.Parse(arg)
	if err != nil {
		return &runError{context: "Invalid run ID", err: err}
	}
	doc, err := DB.RunDocument(cmd.Context(), id)
	if err != nil {
		return &runError{context: "Failed to load run " + arg, err: err}
	}
	if len(doc) == 0 {
		return &runError{context: "Failed to load run " + arg, err: errors.New("run not found or empty")}
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	for _, name := range names {
		fmt.Fprintf(out, "%s:\n", name)
		for _, line := range doc[name] {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
	return nil
}
