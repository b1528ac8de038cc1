package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-sync/gridsearch"
)

var analyzeDimensions int

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().IntVar(&analyzeDimensions, "dimensions", len(gridsearch.Dimensions), "number of leading dimensions to summarize")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <results.csv>",
	Short: "Summarizes grid search results per dimension",
	Long: `For each of the leading dimensions of a results file, groups rows by
their value along that dimension and prints the mean, standard deviation,
maximum and minimum fraction of positive scores, with a histogram.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeDimensions < 1 || analyzeDimensions > len(gridsearch.Dimensions) {
			return fmt.Errorf("dimensions must be between 1 and %d", len(gridsearch.Dimensions))
		}

		rows, err := readReport(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, dim := range gridsearch.Dimensions[:analyzeDimensions] {
			summaries, err := gridsearch.SummarizeDimension(rows, dim)
			if err != nil {
				return err
			}
			if err := printDimension(out, dim, summaries); err != nil {
				return err
			}
		}
		return nil
	},
}

func printDimension(w io.Writer, dim gridsearch.Dimension, summaries []gridsearch.DimensionSummary) error {
	fmt.Fprintf(w, "== %s ==\n", dim)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "value\tmean\tstd\tmax\tmin\thistogram")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.4f\t%.4f\t%s\n",
			s.Value, s.Mean, s.StdDev, s.Max, s.Min, sparkline(s.Histogram))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

var sparks = []rune(" ▁▂▃▄▅▆▇█")

// sparkline draws bin counts scaled to the tallest bin.
func sparkline(counts []float64) string {
	tallest := 0.0
	for _, c := range counts {
		tallest = max(tallest, c)
	}
	var b strings.Builder
	for _, c := range counts {
		level := 0
		if tallest > 0 {
			level = int(c / tallest * float64(len(sparks)-1))
		}
		b.WriteRune(sparks[level])
	}
	return b.String()
}
