package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Load the gallery and list the labels it contributes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runGallery(cmd, opts)
	},
}

func init() {
	rootCmd.AddCommand(galleryCmd)
}

func runGallery(cmd *cobra.Command, opts Options) error {
	if err := validateBackend(&opts); err != nil {
		return &runError{context: "Invalid flags", err: err}
	}

	exts, err := startEngines(cmd.Context(), opts, 1)
	if err != nil {
		return err
	}
	defer closeEngines(exts)

	g, err := loadGallery(cmd.Context(), exts[0], opts.GalleryDir)
	if err != nil {
		return &runError{context: "Failed to load gallery " + opts.GalleryDir, err: err, cmd: workerLogs(exts)}
	}

	out := cmd.OutOrStdout()
	if len(g) == 0 {
		fmt.Fprintln(out, "No gallery faces found.")
		return nil
	}

	rows := make([][]string, len(g))
	for i, e := range g {
		rows[i] = []string{strconv.Itoa(i), e.Label, e.Source, strconv.Itoa(len(e.Embedding))}
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Label", "Source", "Dim"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
	))
	return nil
}
