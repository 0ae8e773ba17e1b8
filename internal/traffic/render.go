package traffic

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"
)

// Options controls how much of each table a Report keeps.
type Options struct {
	Top  int // rows in the port and service tables
	Head int // rows in the category, protocol and trend tables
}

// Report bundles every table of the traffic summary.
type Report struct {
	AttackCategories []Count       `json:"attack_categories" yaml:"attack_categories"`
	Protocols        []Count       `json:"protocols" yaml:"protocols"`
	TopPorts         []Count       `json:"top_ports" yaml:"top_ports"`
	TopServices      []Count       `json:"top_services" yaml:"top_services"`
	HourlyTrends     []TrendPoint  `json:"hourly_trends" yaml:"hourly_trends"`
	Traffic          *Distribution `json:"traffic_distribution,omitempty" yaml:"traffic_distribution,omitempty"`
}

// Build computes the report for d.
func Build(d *Dataset, opts Options) *Report {
	return &Report{
		AttackCategories: head(d.AttackCategories(), opts.Head),
		Protocols:        head(d.Protocols(), opts.Head),
		TopPorts:         d.TopPorts(opts.Top),
		TopServices:      d.TopServices(opts.Top),
		HourlyTrends:     head(d.HourlyTrends(), opts.Head),
		Traffic:          d.TrafficDistribution(),
	}
}

// Write renders the report as "table", "json" or "yaml".
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "", "table":
		return r.writeTable(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func (r *Report) writeTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	section := func(title, keyCol, countCol string, rows []Count) {
		fmt.Fprintf(tw, "=== %s ===\n", title)
		fmt.Fprintf(tw, "%s\t%s\n", keyCol, countCol)
		for _, c := range rows {
			fmt.Fprintf(tw, "%s\t%d\n", c.Key, c.Count)
		}
		fmt.Fprintln(tw)
	}

	section("Top Attack Categories", "category", "count", r.AttackCategories)
	section("Protocol Distribution", "protocol", "count", r.Protocols)
	section("Top Destination Ports", "destination_port", "count", r.TopPorts)
	section("Top Services", "service", "count", r.TopServices)

	fmt.Fprintln(tw, "=== Attack Trends (Hourly) ===")
	fmt.Fprintln(tw, "timestamp\tattack_count")
	for _, p := range r.HourlyTrends {
		fmt.Fprintf(tw, "%s\t%d\n", p.Hour.Format(time.DateTime), p.Count)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "=== Traffic Distribution ===")
	if r.Traffic != nil {
		src, dst := r.Traffic.SourceBytes, r.Traffic.DestinationBytes
		fmt.Fprintln(tw, "\tSource Bytes\tDestination Bytes")
		fmt.Fprintf(tw, "count\t%d\t%d\n", src.Count, dst.Count)
		for _, row := range []struct {
			name     string
			src, dst float64
		}{
			{"mean", src.Mean, dst.Mean},
			{"std", src.Std, dst.Std},
			{"min", src.Min, dst.Min},
			{"25%", src.P25, dst.P25},
			{"50%", src.P50, dst.P50},
			{"75%", src.P75, dst.P75},
			{"max", src.Max, dst.Max},
		} {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", row.name, fmtFloat(row.src), fmtFloat(row.dst))
		}
	}
	return tw.Flush()
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
