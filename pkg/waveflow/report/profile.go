package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// sampleRows is how many data rows a profile keeps for prompt context.
const sampleRows = 2

// Profile describes the shape of a CSV source.
type Profile struct {
	Columns []string
	Rows    int
	Sample  [][]string
}

// ProfileCSV reads the file header, a small sample, and the row count.
func ProfileCSV(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	p := &Profile{Columns: header}
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		if len(p.Sample) < sampleRows {
			p.Sample = append(p.Sample, record)
		}
		p.Rows++
	}
	return p, nil
}

// Summary renders the profile as prompt context for the planner.
func (p *Profile) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(p.Columns, ", "))
	fmt.Fprintf(&b, "Shape: %d rows x %d columns\n", p.Rows, len(p.Columns))
	if len(p.Sample) > 0 {
		b.WriteString("Sample data:\n")
		for _, row := range p.Sample {
			fmt.Fprintf(&b, "  %s\n", strings.Join(row, ", "))
		}
	}
	return b.String()
}

// summarizeCSV never fails: planner context degrades to the error text,
// leaving the model to work without schema hints.
func summarizeCSV(path string) string {
	p, err := ProfileCSV(path)
	if err != nil {
		return fmt.Sprintf("Error loading CSV: %s", err)
	}
	return p.Summary()
}
