// Package preprocess turns survey tables into numeric feature matrices.
package preprocess

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Table is a column-oriented view of the rows to encode.
type Table interface {
	Len() int
	Categorical(column string) ([]string, error)
	Numeric(column string) ([]float64, error)
}

// Unknown category policies
const (
	HandleUnknownIgnore = "ignore"
	HandleUnknownError  = "error"
)

// OneHotEncoder expands categorical columns into indicator columns, one per
// category seen during Fit.
type OneHotEncoder struct {
	Columns       []string   `json:"columns"`
	HandleUnknown string     `json:"handle_unknown"`
	Categories    [][]string `json:"categories"` // sorted, per column
}

// NewOneHotEncoder creates an encoder that ignores unseen categories
func NewOneHotEncoder(columns ...string) *OneHotEncoder {
	return &OneHotEncoder{
		Columns:       append([]string(nil), columns...),
		HandleUnknown: HandleUnknownIgnore,
	}
}

// Fit learns the sorted category vocabulary of every column
func (e *OneHotEncoder) Fit(t Table) error {
	if t.Len() == 0 {
		return fmt.Errorf("cannot fit encoder on empty table")
	}

	categories := make([][]string, len(e.Columns))
	for i, col := range e.Columns {
		values, err := t.Categorical(col)
		if err != nil {
			return fmt.Errorf("fit %s: %w", col, err)
		}
		categories[i] = uniqueSorted(values)
	}
	e.Categories = categories
	return nil
}

// Fitted reports whether Fit has run
func (e *OneHotEncoder) Fitted() bool {
	return len(e.Categories) == len(e.Columns) && len(e.Columns) > 0
}

// Width returns the number of output columns
func (e *OneHotEncoder) Width() int {
	w := 0
	for _, cats := range e.Categories {
		w += len(cats)
	}
	return w
}

// FeatureNames returns "<column>_<category>" for every output column
func (e *OneHotEncoder) FeatureNames() []string {
	names := make([]string, 0, e.Width())
	for i, col := range e.Columns {
		for _, cat := range e.Categories[i] {
			names = append(names, col+"_"+cat)
		}
	}
	return names
}

// Transform encodes t. Categories not seen during Fit yield an all-zero block
// unless HandleUnknown is "error".
func (e *OneHotEncoder) Transform(t Table) (*mat.Dense, error) {
	if !e.Fitted() {
		return nil, fmt.Errorf("encoder is not fitted")
	}
	n := t.Len()
	if n == 0 {
		return nil, fmt.Errorf("cannot transform empty table")
	}

	out := mat.NewDense(n, e.Width(), nil)
	if err := e.transformInto(t, out, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// transformInto writes the indicator block into dst starting at column offset.
func (e *OneHotEncoder) transformInto(t Table, dst *mat.Dense, offset int) error {
	for i, col := range e.Columns {
		values, err := t.Categorical(col)
		if err != nil {
			return fmt.Errorf("transform %s: %w", col, err)
		}

		index := make(map[string]int, len(e.Categories[i]))
		for j, cat := range e.Categories[i] {
			index[cat] = j
		}

		for row, v := range values {
			j, ok := index[v]
			if !ok {
				if e.HandleUnknown == HandleUnknownError {
					return fmt.Errorf("unknown category %q in column %s at row %d", v, col, row)
				}
				continue
			}
			dst.Set(row, offset+j, 1)
		}
		offset += len(e.Categories[i])
	}
	return nil
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
