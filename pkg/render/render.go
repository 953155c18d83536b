package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/itchyny/gojq"

	"github.com/pario-ai/quelldemo/pkg/models"
)

const barWidth = 40

// Payload pretty-prints data. A non-empty expr is applied as a jq
// expression first and each result is printed on its own.
func Payload(data json.RawMessage, expr string) (string, error) {
	if expr == "" || expr == "." {
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return "", fmt.Errorf("invalid JSON data: %w", err)
		}
		return buf.String(), nil
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return "", fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return "", fmt.Errorf("failed to compile jq expression: %w", err)
	}

	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return "", fmt.Errorf("invalid JSON data: %w", err)
	}

	var out []string
	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return "", fmt.Errorf("jq: %w", err)
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode jq result: %w", err)
		}
		out = append(out, string(b))
	}
	return strings.Join(out, "\n"), nil
}

// Snapshot writes the hit/miss summary, per-label latencies, the error
// log and a bar chart of response times in submission order.
func Snapshot(w io.Writer, snap models.Snapshot) error {
	fmt.Fprintf(w, "Queries: %d  Hits: %d  Misses: %d  Hit rate: %.1f%%\n",
		snap.Total(), snap.CacheHitCount, snap.CacheMissCount, snap.HitRate()*100)

	if len(snap.ResponseTimesMs) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "LABEL\tCOUNT\tMIN MS\tAVG MS\tMAX MS")
		for _, row := range byLabel(snap) {
			fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\n", row.label, row.count, row.min, row.sum/float64(row.count), row.max)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		fmt.Fprintln(w)
		if err := Chart(w, snap); err != nil {
			return err
		}
	}

	if len(snap.ErrorLog) > 0 {
		fmt.Fprintf(w, "\nErrors (%d):\n", len(snap.ErrorLog))
		for _, msg := range snap.ErrorLog {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}
	return nil
}

// Chart writes one bar per recorded response time, scaled to the slowest.
func Chart(w io.Writer, snap models.Snapshot) error {
	if len(snap.ResponseTimesMs) == 0 {
		return nil
	}
	peak := slices.Max(snap.ResponseTimesMs)
	labelWidth := 0
	for _, l := range snap.QueryTypeLabels {
		labelWidth = max(labelWidth, len(l))
	}

	for i, ms := range snap.ResponseTimesMs {
		n := 0
		if peak > 0 {
			n = int(ms / peak * barWidth)
		}
		if n == 0 && ms > 0 {
			n = 1
		}
		label := ""
		if i < len(snap.QueryTypeLabels) {
			label = snap.QueryTypeLabels[i]
		}
		if _, err := fmt.Fprintf(w, "%3d %-*s %s %.2fms\n", i+1, labelWidth, label, strings.Repeat("#", n), ms); err != nil {
			return err
		}
	}
	return nil
}

type labelRow struct {
	label    string
	count    int
	min, max float64
	sum      float64
}

// byLabel aggregates response times per label in first-seen order.
func byLabel(snap models.Snapshot) []labelRow {
	var rows []labelRow
	index := make(map[string]int)
	for i, ms := range snap.ResponseTimesMs {
		if i >= len(snap.QueryTypeLabels) {
			break
		}
		label := snap.QueryTypeLabels[i]
		j, ok := index[label]
		if !ok {
			index[label] = len(rows)
			rows = append(rows, labelRow{label: label, count: 1, min: ms, max: ms, sum: ms})
			continue
		}
		r := &rows[j]
		r.count++
		r.sum += ms
		r.min = min(r.min, ms)
		r.max = max(r.max, ms)
	}
	return rows
}
