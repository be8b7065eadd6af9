// Package dataset loads store records from CSV into an ordered, typed table.
package dataset

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Numeric columns hold float64 values; NaN marks a missing cell.
	Numeric Kind = iota
	// Categorical columns hold strings plus a missing mask.
	Categorical
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

// Column is one named column of a Table.
type Column struct {
	Name        string
	Kind        Kind
	Numeric     []float64
	Categorical []string
	Missing     []bool // categorical only
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Numeric)
	}
	return len(c.Categorical)
}

// IsMissing reports whether cell i is missing.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Numeric[i])
	}
	return c.Missing[i]
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Table is an ordered collection of equally long columns. The row count is
// fixed once the first column is added.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{index: make(map[string]int)}
}

func (t *Table) add(c *Column) error {
	if _, dup := t.index[c.Name]; dup {
		return errors.NewValidationError("column", "duplicate column name", c.Name)
	}
	if len(t.columns) == 0 {
		t.rows = c.Len()
	} else if c.Len() != t.rows {
		return errors.NewDimensionError("Table.Add", t.rows, c.Len(), 0)
	}
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
	return nil
}

// AddNumeric appends a numeric column. values is retained, not copied.
func (t *Table) AddNumeric(name string, values []float64) error {
	return t.add(&Column{Name: name, Kind: Numeric, Numeric: values})
}

// AddCategorical appends a categorical column. A nil missing mask means no
// cell is missing.
func (t *Table) AddCategorical(name string, values []string, missing []bool) error {
	if missing == nil {
		missing = make([]bool, len(values))
	}
	if len(missing) != len(values) {
		return errors.NewDimensionError("Table.AddCategorical", len(values), len(missing), 0)
	}
	return t.add(&Column{Name: name, Kind: Categorical, Categorical: values, Missing: missing})
}

// ReplaceWithNumeric swaps the named column for a numeric one, keeping its position.
func (t *Table) ReplaceWithNumeric(name string, values []float64) error {
	i, ok := t.index[name]
	if !ok {
		return errors.NewValueError("Table.ReplaceWithNumeric", "unknown column "+name)
	}
	if len(values) != t.rows {
		return errors.NewDimensionError("Table.ReplaceWithNumeric", t.rows, len(values), 0)
	}
	t.columns[i] = &Column{Name: name, Kind: Numeric, Numeric: values}
	return nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.columns) }

// Names returns column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in table order.
func (t *Table) Columns() []*Column { return t.columns }

// Column returns the named column.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// NamesOfKind returns the names of all columns of kind k in table order.
func (t *Table) NamesOfKind(k Kind) []string {
	var names []string
	for _, c := range t.columns {
		if c.Kind == k {
			names = append(names, c.Name)
		}
	}
	return names
}

// Matrix builds a rows×len(names) matrix from numeric columns in the given order.
func (t *Table) Matrix(names []string) (*mat.Dense, error) {
	if t.rows == 0 || len(names) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "Table.Matrix")
	}
	m := mat.NewDense(t.rows, len(names), nil)
	for j, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, errors.NewValueError("Table.Matrix", "unknown column "+name)
		}
		if c.Kind != Numeric {
			return nil, errors.NewValueError("Table.Matrix", "column "+name+" is not numeric; encode it first")
		}
		for i, v := range c.Numeric {
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// Vector returns a copy of a numeric column as a vector.
func (t *Table) Vector(name string) (*mat.VecDense, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, errors.NewValueError("Table.Vector", "unknown column "+name)
	}
	if c.Kind != Numeric {
		return nil, errors.NewValueError("Table.Vector", "column "+name+" is not numeric")
	}
	if len(c.Numeric) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "Table.Vector")
	}
	return mat.NewVecDense(len(c.Numeric), append([]float64(nil), c.Numeric...)), nil
}

// Clone returns a deep copy of the table. The copy keeps the column order,
// names and row count, so it is built directly instead of through add.
func (t *Table) Clone() *Table {
	out := &Table{
		columns: make([]*Column, len(t.columns)),
		index:   make(map[string]int, len(t.index)),
		rows:    t.rows,
	}
	for i, c := range t.columns {
		cc := &Column{Name: c.Name, Kind: c.Kind}
		if c.Kind == Numeric {
			cc.Numeric = append([]float64(nil), c.Numeric...)
		} else {
			cc.Categorical = append([]string(nil), c.Categorical...)
			cc.Missing = append([]bool(nil), c.Missing...)
		}
		out.columns[i] = cc
		out.index[c.Name] = i
	}
	return out
}

// FeatureColumns returns every column except target, in table order.
func (t *Table) FeatureColumns(target string) []string {
	var names []string
	for _, c := range t.columns {
		if c.Name != target {
			names = append(names, c.Name)
		}
	}
	return names
}

// DetectTarget returns the first column whose lower-cased name contains
// "venta" or "sales".
func DetectTarget(t *Table) (string, error) {
	for _, c := range t.columns {
		lower := strings.ToLower(c.Name)
		if strings.Contains(lower, "venta") || strings.Contains(lower, "sales") {
			return c.Name, nil
		}
	}
	return "", errors.Wrapf(errors.ErrTargetNotFound, "no column name contains %q or %q in %v", "venta", "sales", t.Names())
}

// ResolveTarget returns explicit if set and present, otherwise the detected
// target. The target must be numeric.
func ResolveTarget(t *Table, explicit string) (string, error) {
	name := explicit
	if name == "" {
		var err error
		if name, err = DetectTarget(t); err != nil {
			return "", err
		}
	}
	c, ok := t.Column(name)
	if !ok {
		return "", errors.Wrapf(errors.ErrTargetNotFound, "column %q", name)
	}
	if c.Kind != Numeric {
		return "", errors.NewValidationError("target", "target column must be numeric", name)
	}
	return name, nil
}
