package econometrics

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
)

// Frame is a read-only collection of entity×time observations with named
// numeric columns. Missing values are NaN. Frames are constructed once by the
// external dataset pipeline (or loaded from its CSV artifact) and never
// mutated by the engine; Subset returns filtered copies.
type Frame struct {
	entities []string
	times    []int
	columns  map[string][]float64
	names    []string
	n        int
}

// NewFrame builds a frame from parallel entity/time keys and named columns.
// (entity, time) pairs must be unique and every column must have one value
// per observation.
func NewFrame(entities []string, times []int, columns map[string][]float64) (*Frame, error) {
	n := len(entities)
	if n == 0 {
		return nil, fmt.Errorf("frame has no observations")
	}
	if len(times) != n {
		return nil, fmt.Errorf("entity/time length mismatch: %d vs %d", n, len(times))
	}

	seen := make(map[string]struct{}, n)
	for i := range entities {
		key := entities[i] + "\x00" + strconv.Itoa(times[i])
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate observation for entity %q at time %d", entities[i], times[i])
		}
		seen[key] = struct{}{}
	}

	names := make([]string, 0, len(columns))
	for name, vals := range columns {
		if len(vals) != n {
			return nil, fmt.Errorf("column %q has %d values, want %d", name, len(vals), n)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	f := &Frame{
		entities: append([]string(nil), entities...),
		times:    append([]int(nil), times...),
		columns:  make(map[string][]float64, len(columns)),
		names:    names,
		n:        n,
	}
	for name, vals := range columns {
		f.columns[name] = append([]float64(nil), vals...)
	}
	return f, nil
}

// NumRows returns the number of observations
func (f *Frame) NumRows() int { return f.n }

// ColumnNames returns the column names in sorted order
func (f *Frame) ColumnNames() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// HasColumn reports whether the named column exists
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Column returns the values of the named column. The returned slice is owned
// by the frame and must not be modified.
func (f *Frame) Column(name string) ([]float64, error) {
	vals, ok := f.columns[name]
	if !ok {
		return nil, &MissingColumnError{Column: name}
	}
	return vals, nil
}

// Row is a lightweight view of a single observation
type Row struct {
	f *Frame
	i int
}

// Entity returns the observation's entity key
func (r Row) Entity() string { return r.f.entities[r.i] }

// Time returns the observation's time key
func (r Row) Time() int { return r.f.times[r.i] }

// Value returns the observation's value in the named column, NaN when the
// column is absent.
func (r Row) Value(col string) float64 {
	vals, ok := r.f.columns[col]
	if !ok {
		return math.NaN()
	}
	return vals[r.i]
}

// Row returns a view of observation i
func (f *Frame) Row(i int) Row { return Row{f: f, i: i} }

// Subset returns a new frame containing the observations for which keep
// returns true. The receiver is left untouched.
func (f *Frame) Subset(keep func(r Row) bool) *Frame {
	idx := make([]int, 0, f.n)
	for i := 0; i < f.n; i++ {
		if keep(Row{f: f, i: i}) {
			idx = append(idx, i)
		}
	}

	sub := &Frame{
		entities: make([]string, len(idx)),
		times:    make([]int, len(idx)),
		columns:  make(map[string][]float64, len(f.columns)),
		names:    append([]string(nil), f.names...),
		n:        len(idx),
	}
	for j, i := range idx {
		sub.entities[j] = f.entities[i]
		sub.times[j] = f.times[i]
	}
	for name, vals := range f.columns {
		col := make([]float64, len(idx))
		for j, i := range idx {
			col[j] = vals[i]
		}
		sub.columns[name] = col
	}
	return sub
}

// EntityTimeCounts returns the number of distinct time periods observed per
// entity.
func (f *Frame) EntityTimeCounts() map[string]int {
	times := make(map[string]map[int]struct{})
	for i := 0; i < f.n; i++ {
		e := f.entities[i]
		if times[e] == nil {
			times[e] = make(map[int]struct{})
		}
		times[e][f.times[i]] = struct{}{}
	}
	counts := make(map[string]int, len(times))
	for e, set := range times {
		counts[e] = len(set)
	}
	return counts
}

// LoadPanelCSV reads the modeling-dataset artifact produced by the external
// panel pipeline. The file must carry "ticker", "year" and "quarter" columns;
// every other column is parsed as numeric with blank or unparseable cells
// mapped to NaN. The time key is encoded as year*10+quarter.
func LoadPanelCSV(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open panel artifact: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read panel artifact: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("panel artifact %s has no data rows", path)
	}

	header := records[0]
	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[name] = i
	}
	for _, required := range []string{"ticker", "year", "quarter"} {
		if _, ok := colIdx[required]; !ok {
			return nil, &MissingColumnError{Column: required, Context: "panel artifact header"}
		}
	}

	rows := records[1:]
	entities := make([]string, 0, len(rows))
	times := make([]int, 0, len(rows))
	columns := make(map[string][]float64)
	for _, name := range header {
		if name == "ticker" || name == "quarter" {
			continue
		}
		columns[name] = make([]float64, 0, len(rows))
	}

	for lineNo, rec := range rows {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("panel artifact row %d has %d fields, want %d", lineNo+2, len(rec), len(header))
		}
		year, err := strconv.Atoi(rec[colIdx["year"]])
		if err != nil {
			return nil, fmt.Errorf("panel artifact row %d: invalid year %q", lineNo+2, rec[colIdx["year"]])
		}
		quarter, err := strconv.Atoi(rec[colIdx["quarter"]])
		if err != nil {
			return nil, fmt.Errorf("panel artifact row %d: invalid quarter %q", lineNo+2, rec[colIdx["quarter"]])
		}

		entities = append(entities, rec[colIdx["ticker"]])
		times = append(times, year*10+quarter)

		for _, name := range header {
			if name == "ticker" || name == "quarter" {
				continue
			}
			raw := rec[colIdx[name]]
			val, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				val = math.NaN()
			}
			columns[name] = append(columns[name], val)
		}
	}

	return NewFrame(entities, times, columns)
}
