package dataset

import (
	"fmt"
)

// Row gives read access to one respondent's answers
type Row interface {
	Value(name string) Value
}

// Dataset is an immutable, column-oriented table of responses. Derived
// columns are added with WithColumn, which returns a new Dataset sharing the
// existing columns.
type Dataset struct {
	names []string
	cols  map[string][]Value
	n     int
}

// New creates an empty dataset with n rows
func New(n int) *Dataset {
	return &Dataset{cols: make(map[string][]Value), n: n}
}

// FromRows builds a dataset from row records. Columns are taken from names;
// absent keys are NA.
func FromRows(names []string, rows []map[string]Value) *Dataset {
	d := New(len(rows))
	for _, name := range names {
		col := make([]Value, len(rows))
		for i, r := range rows {
			col[i] = r[name]
		}
		d.names = append(d.names, name)
		d.cols[name] = col
	}
	return d
}

// Len returns the number of rows
func (d *Dataset) Len() int { return d.n }

// Names returns column names in insertion order
func (d *Dataset) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Has reports whether the column exists
func (d *Dataset) Has(name string) bool {
	_, ok := d.cols[name]
	return ok
}

// Column returns the values of a column. The slice must not be modified.
func (d *Dataset) Column(name string) ([]Value, bool) {
	c, ok := d.cols[name]
	return c, ok
}

// Value returns one cell; unknown columns read as NA
func (d *Dataset) Value(row int, name string) Value {
	c, ok := d.cols[name]
	if !ok || row < 0 || row >= len(c) {
		return NA()
	}
	return c[row]
}

// WithColumn returns a dataset with the column added or replaced
func (d *Dataset) WithColumn(name string, values []Value) (*Dataset, error) {
	if len(values) != d.n {
		return nil, fmt.Errorf("column %q has %d values, dataset has %d rows", name, len(values), d.n)
	}
	out := &Dataset{
		names: make([]string, len(d.names), len(d.names)+1),
		cols:  make(map[string][]Value, len(d.cols)+1),
		n:     d.n,
	}
	copy(out.names, d.names)
	for k, v := range d.cols {
		out.cols[k] = v
	}
	if _, exists := out.cols[name]; !exists {
		out.names = append(out.names, name)
	}
	out.cols[name] = values
	return out, nil
}

// Subset keeps the rows where mask is true
func (d *Dataset) Subset(mask []bool) *Dataset {
	keep := 0
	for i := 0; i < d.n && i < len(mask); i++ {
		if mask[i] {
			keep++
		}
	}
	out := &Dataset{names: d.Names(), cols: make(map[string][]Value, len(d.cols)), n: keep}
	for name, col := range d.cols {
		sub := make([]Value, 0, keep)
		for i, v := range col {
			if i < len(mask) && mask[i] {
				sub = append(sub, v)
			}
		}
		out.cols[name] = sub
	}
	return out
}

// Row returns a view of row i
func (d *Dataset) Row(i int) RowView { return RowView{d: d, i: i} }

// Records returns the rows as maps, in row order
func (d *Dataset) Records() []map[string]Value {
	out := make([]map[string]Value, d.n)
	for i := range out {
		rec := make(map[string]Value, len(d.names))
		for _, name := range d.names {
			rec[name] = d.cols[name][i]
		}
		out[i] = rec
	}
	return out
}

// RowView is a Row backed by a Dataset
type RowView struct {
	d *Dataset
	i int
}

// Value implements Row
func (r RowView) Value(name string) Value { return r.d.Value(r.i, name) }

// MapRow is a Row backed by a map, handy for single-record evaluation
type MapRow map[string]Value

// Value implements Row
func (m MapRow) Value(name string) Value { return m[name] }
