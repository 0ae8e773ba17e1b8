package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"threatdash/internal/traffic"
)

var (
	featuresPath string
	datasetPath  string
	maxRows      int
	top          int
	headRows     int
	format       string
)

var rootCmd = &cobra.Command{
	Use:   "traffic-report",
	Short: "Summarize the UNSW-NB15 traffic dataset",
	Long: `traffic-report loads the UNSW-NB15 training set and prints attack categories,
protocol and service distributions, top destination ports, hourly attack
trends and byte-count statistics.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ff, err := os.Open(featuresPath)
		if err != nil {
			return err
		}
		defer ff.Close()
		names, err := traffic.LoadFeatureNames(ff)
		if err != nil {
			return fmt.Errorf("%s: %w", featuresPath, err)
		}

		df, err := os.Open(datasetPath)
		if err != nil {
			return err
		}
		defer df.Close()
		ds, err := traffic.Load(df, names, maxRows)
		if err != nil {
			return fmt.Errorf("%s: %w", datasetPath, err)
		}

		rep := traffic.Build(ds, traffic.Options{Top: top, Head: headRows})
		return rep.Write(cmd.OutOrStdout(), format)
	},
}

func init() {
	rootCmd.Flags().StringVar(&featuresPath, "features", "NUSW-NB15_features.csv", "Feature description CSV")
	rootCmd.Flags().StringVar(&datasetPath, "dataset", "UNSW_NB15_training-set.csv", "Header-less traffic dataset CSV")
	rootCmd.Flags().IntVar(&maxRows, "rows", traffic.DefaultMaxRows, "Maximum dataset rows to load (0 for all)")
	rootCmd.Flags().IntVar(&top, "top", 10, "Rows in the port and service tables")
	rootCmd.Flags().IntVar(&headRows, "head", 5, "Rows in the category, protocol and trend tables")
	rootCmd.Flags().StringVarP(&format, "format", "o", "table", "Output format: table, json or yaml")
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
