// Package dataset loads the cafeteria survey CSV and partitions it for training.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Column names of the survey file
const (
	ColAge              = "age"
	ColClasse           = "classe"
	ColTypeRepas        = "type_repas"
	ColCalories         = "calories"
	ColCoutRepas        = "cout_repas"
	ColFreqConsommation = "freq_consommation"
	ColSatisfaction     = "satisfaction"
	ColRecommande       = "recommande"
)

// RequiredColumns lists the header names that must be present, in declared order.
var RequiredColumns = []string{
	ColAge, ColClasse, ColTypeRepas, ColCalories, ColCoutRepas,
	ColFreqConsommation, ColSatisfaction, ColRecommande,
}

// Target is the label column
const Target = ColRecommande

// MissingColumnsError is returned when the header lacks required columns.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing columns in CSV: [%s]", strings.Join(e.Columns, " "))
}

// IsMissingColumns reports whether err wraps a *MissingColumnsError
func IsMissingColumns(err error) bool {
	var mc *MissingColumnsError
	return errors.As(err, &mc)
}

// Record is one survey answer
type Record struct {
	Age              float64
	Classe           string
	TypeRepas        string
	Calories         float64
	CoutRepas        float64
	FreqConsommation float64
	Satisfaction     float64
	Recommande       int
}

// Dataset is an ordered, read-only sequence of records.
type Dataset struct {
	path    string
	records []Record
}

// New builds a dataset from records. The slice is copied.
func New(records []Record) *Dataset {
	cp := make([]Record, len(records))
	copy(cp, records)
	return &Dataset{records: cp}
}

// Load reads the CSV file at path
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	ds.path = path
	return ds, nil
}

// Parse reads a comma-delimited survey with a header row. Extra columns are ignored.
func Parse(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	var records []Record
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}

		rec, err := parseRecord(row, index)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		records = append(records, rec)
	}

	return &Dataset{records: records}, nil
}

func parseRecord(row []string, index map[string]int) (Record, error) {
	var rec Record
	var err error

	num := func(col string, dst *float64) {
		if err != nil {
			return
		}
		raw := strings.TrimSpace(row[index[col]])
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			err = fmt.Errorf("column %q: invalid number %q", col, raw)
			return
		}
		*dst = v
	}

	num(ColAge, &rec.Age)
	num(ColCalories, &rec.Calories)
	num(ColCoutRepas, &rec.CoutRepas)
	num(ColFreqConsommation, &rec.FreqConsommation)
	num(ColSatisfaction, &rec.Satisfaction)
	if err != nil {
		return rec, err
	}

	rec.Classe = strings.TrimSpace(row[index[ColClasse]])
	rec.TypeRepas = strings.TrimSpace(row[index[ColTypeRepas]])

	label, err := parseLabel(row[index[ColRecommande]])
	if err != nil {
		return rec, fmt.Errorf("column %q: %w", ColRecommande, err)
	}
	rec.Recommande = label

	return rec, nil
}

// parseLabel accepts integers, integral floats such as "1.0" and
// case-insensitive true/false.
func parseLabel(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid label %q", raw)
	}
	return int(f), nil
}

// Path returns the file the dataset was loaded from, if any
func (d *Dataset) Path() string { return d.path }

// Len returns the number of rows
func (d *Dataset) Len() int { return len(d.records) }

// Record returns a copy of row i
func (d *Dataset) Record(i int) Record { return d.records[i] }

// Records returns a copy of all rows
func (d *Dataset) Records() []Record {
	cp := make([]Record, len(d.records))
	copy(cp, d.records)
	return cp
}

// Labels returns the target column
func (d *Dataset) Labels() []int {
	labels := make([]int, len(d.records))
	for i, r := range d.records {
		labels[i] = r.Recommande
	}
	return labels
}

// Categorical returns a copy of a string-valued column
func (d *Dataset) Categorical(column string) ([]string, error) {
	var get func(Record) string
	switch column {
	case ColClasse:
		get = func(r Record) string { return r.Classe }
	case ColTypeRepas:
		get = func(r Record) string { return r.TypeRepas }
	default:
		return nil, fmt.Errorf("%q is not a categorical column", column)
	}

	out := make([]string, len(d.records))
	for i, r := range d.records {
		out[i] = get(r)
	}
	return out, nil
}

// Numeric returns a copy of a number-valued column
func (d *Dataset) Numeric(column string) ([]float64, error) {
	var get func(Record) float64
	switch column {
	case ColAge:
		get = func(r Record) float64 { return r.Age }
	case ColCalories:
		get = func(r Record) float64 { return r.Calories }
	case ColCoutRepas:
		get = func(r Record) float64 { return r.CoutRepas }
	case ColFreqConsommation:
		get = func(r Record) float64 { return r.FreqConsommation }
	case ColSatisfaction:
		get = func(r Record) float64 { return r.Satisfaction }
	default:
		return nil, fmt.Errorf("%q is not a numeric column", column)
	}

	out := make([]float64, len(d.records))
	for i, r := range d.records {
		out[i] = get(r)
	}
	return out, nil
}

// subset returns the rows at the given positions, in that order
func (d *Dataset) subset(indices []int) *Dataset {
	records := make([]Record, len(indices))
	for i, idx := range indices {
		records[i] = d.records[idx]
	}
	return &Dataset{path: d.path, records: records}
}

// Hash returns a stable content digest of every row, label included.
func (d *Dataset) Hash() string {
	h := xxhash.New()
	var buf []byte
	for _, r := range d.records {
		buf = buf[:0]
		buf = AppendRecord(buf, r)
		h.Write(buf)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// AppendRecord appends a canonical encoding of r to buf.
func AppendRecord(buf []byte, r Record) []byte {
	buf = strconv.AppendFloat(buf, r.Age, 'g', -1, 64)
	buf = append(buf, 0)
	buf = append(buf, r.Classe...)
	buf = append(buf, 0)
	buf = append(buf, r.TypeRepas...)
	buf = append(buf, 0)
	for _, v := range []float64{r.Calories, r.CoutRepas, r.FreqConsommation, r.Satisfaction} {
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		buf = append(buf, 0)
	}
	buf = strconv.AppendInt(buf, int64(r.Recommande), 10)
	return append(buf, '\n')
}
