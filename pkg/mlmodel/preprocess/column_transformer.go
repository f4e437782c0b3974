package preprocess

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ColumnTransformer one-hot encodes the categorical columns and passes the
// numeric columns through unchanged. Output columns are the encoder blocks
// followed by the numeric columns, each group in declared order.
type ColumnTransformer struct {
	Categorical []string       `json:"categorical"`
	Numeric     []string       `json:"numeric"`
	Encoder     *OneHotEncoder `json:"encoder"`
}

// NewColumnTransformer creates an unfitted transformer
func NewColumnTransformer(categorical, numeric []string) *ColumnTransformer {
	return &ColumnTransformer{
		Categorical: append([]string(nil), categorical...),
		Numeric:     append([]string(nil), numeric...),
		Encoder:     NewOneHotEncoder(categorical...),
	}
}

// Signature describes the transformer configuration. Two transformers with
// the same signature fitted on the same input produce the same output.
func (ct *ColumnTransformer) Signature() string {
	return fmt.Sprintf("onehot(%s;handle_unknown=%s)|passthrough(%s)",
		strings.Join(ct.Categorical, ","),
		ct.Encoder.HandleUnknown,
		strings.Join(ct.Numeric, ","))
}

// Fit learns the one-hot vocabulary
func (ct *ColumnTransformer) Fit(t Table) error {
	return ct.Encoder.Fit(t)
}

// Transform builds the feature matrix for t
func (ct *ColumnTransformer) Transform(t Table) (*mat.Dense, error) {
	if !ct.Encoder.Fitted() {
		return nil, fmt.Errorf("column transformer is not fitted")
	}
	n := t.Len()
	if n == 0 {
		return nil, fmt.Errorf("cannot transform empty table")
	}

	width := ct.Encoder.Width()
	out := mat.NewDense(n, width+len(ct.Numeric), nil)

	if err := ct.Encoder.transformInto(t, out, 0); err != nil {
		return nil, err
	}

	for j, col := range ct.Numeric {
		values, err := t.Numeric(col)
		if err != nil {
			return nil, fmt.Errorf("passthrough %s: %w", col, err)
		}
		out.SetCol(width+j, values)
	}

	return out, nil
}

// FitTransform fits then transforms t
func (ct *ColumnTransformer) FitTransform(t Table) (*mat.Dense, error) {
	if err := ct.Fit(t); err != nil {
		return nil, err
	}
	return ct.Transform(t)
}

// FeatureNames returns the expanded output column names
func (ct *ColumnTransformer) FeatureNames() []string {
	names := ct.Encoder.FeatureNames()
	return append(names, ct.Numeric...)
}
