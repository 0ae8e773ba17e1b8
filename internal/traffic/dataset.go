// Package traffic aggregates the UNSW-NB15 network traffic dataset into the
// summary tables shown on the dashboard's analytics page.
package traffic

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// DefaultMaxRows bounds how much of the dataset is loaded.
const DefaultMaxRows = 200000

// Column names used by the report.
const (
	colAttackCat = "attack_cat"
	colProto     = "proto"
	colService   = "service"
	colDstPort   = "dsport"
	colSrcBytes  = "sbytes"
	colDstBytes  = "dbytes"
	colDuration  = "dur"
)

// Flow is one dataset row reduced to the columns the report needs. Numeric
// fields are NaN when missing or unparseable.
type Flow struct {
	AttackCategory string
	Protocol       string
	Service        string
	DstPort        float64
	SrcBytes       float64
	DstBytes       float64
	Duration       float64
}

// Dataset is a loaded slice of the traffic data.
type Dataset struct {
	Flows   []Flow
	columns map[string]bool
}

// HasColumn reports whether the feature list named the column.
func (d *Dataset) HasColumn(name string) bool { return d.columns[name] }

// LoadFeatureNames reads the features description file (ISO-8859-1 CSV with
// a header) and returns the values of its Name column in order.
func LoadFeatureNames(r io.Reader) ([]string, error) {
	cr := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read features header: %w", err)
	}
	nameIdx := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "name") {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, errors.New("features file has no Name column")
	}

	var names []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read features: %w", err)
		}
		if nameIdx < len(rec) {
			names = append(names, strings.TrimSpace(rec[nameIdx]))
		}
	}
	if len(names) == 0 {
		return nil, errors.New("features file lists no columns")
	}
	return names, nil
}

// Load reads up to maxRows header-less rows whose columns are named by names.
// A non-positive maxRows reads everything.
func Load(r io.Reader, names []string, maxRows int) (*Dataset, error) {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		if _, dup := idx[n]; !dup {
			idx[n] = i
		}
	}
	d := &Dataset{columns: make(map[string]bool, len(idx))}
	for n := range idx {
		d.columns[n] = true
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	field := func(rec []string, col string) (string, bool) {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return "", false
		}
		v := strings.TrimSpace(rec[i])
		return v, v != ""
	}

	for maxRows <= 0 || len(d.Flows) < maxRows {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset row %d: %w", len(d.Flows)+1, err)
		}

		f := Flow{
			AttackCategory: "None",
			Service:        "unknown",
			DstPort:        numeric(field(rec, colDstPort)),
			SrcBytes:       numeric(field(rec, colSrcBytes)),
			DstBytes:       numeric(field(rec, colDstBytes)),
			Duration:       numeric(field(rec, colDuration)),
		}
		if v, ok := field(rec, colAttackCat); ok {
			f.AttackCategory = v
		}
		if v, ok := field(rec, colService); ok {
			f.Service = v
		}
		f.Protocol, _ = field(rec, colProto)
		d.Flows = append(d.Flows, f)
	}
	return d, nil
}

func numeric(v string, ok bool) float64 {
	if !ok {
		return math.NaN()
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return math.NaN()
	}
	return n
}
