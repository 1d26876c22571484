package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/esimov/facecap"
	"github.com/spf13/cobra"
)

var listDir string

var listCmd = &cobra.Command{
	Use:   "list <id>",
	Short: "List the samples collected for a user ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := samplesDir(listDir)
		if err != nil {
			return err
		}
		return listSamples(cmd.OutOrStdout(), facecap.NewSession(args[0], dir))
	},
}

func init() {
	listCmd.Flags().StringVarP(&listDir, "out", "o", "", "Samples directory (default: samples next to the executable)")
	rootCmd.AddCommand(listCmd)
}

// listSamples prints the samples of the session found in its directory.
func listSamples(w io.Writer, s *facecap.Session) error {
	samples, err := s.Existing()
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintf(w, "No samples found for user %s in %s\n", s.ID, s.Dir)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tFILE\tSIZE")
	fmt.Fprintln(tw, "-----\t----\t----")
	for _, smp := range samples {
		size := "?"
		if fi, err := os.Stat(smp.Path); err == nil {
			size = fmt.Sprintf("%d B", fi.Size())
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", smp.Index, filepath.Base(smp.Path), size)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d samples for user %s\n", len(samples), s.ID)
	return nil
}

// samplesDir returns dir, or the samples directory next to the executable if dir is empty.
func samplesDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	path, _, err := facecap.ResolvePath(defaultSamplesDir)
	return path, err
}
