package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/peterbourgon/diskv"
	"gonum.org/v1/gonum/mat"

	"github.com/Cedric-Assemien/machine-learning-pipeline-elk-avec-grafana-elastic/pkg/mlmodel/preprocess"
)

// BlockTransform splits a key into directories of blockSize characters
func BlockTransform(blockSize int) func(string) []string {
	return func(s string) []string {
		var (
			sliceSize = len(s) / blockSize
			pathSlice = make([]string, sliceSize)
		)
		for i := 0; i < sliceSize; i++ {
			from, to := i*blockSize, (i*blockSize)+blockSize
			pathSlice[i] = s[from:to]
		}
		return pathSlice
	}
}

// transformEntry is the gob payload of one cached transformation
type transformEntry struct {
	Transformer *preprocess.ColumnTransformer
	Rows, Cols  int
	Data        []float64
}

// TransformCache keeps fitted column transformers and their output on disk,
// keyed by the transformer configuration and the input values.
type TransformCache struct {
	dv *diskv.Diskv
}

// NewTransformCache opens a gzip-compressed cache rooted at dir
func NewTransformCache(dir string) *TransformCache {
	return &TransformCache{dv: diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    BlockTransform(4),
		CacheSizeMax: 4096 * 1024,
		Compression:  diskv.NewGzipCompression(),
	})}
}

// Key derives the cache key of ct applied to t
func (c *TransformCache) Key(ct *preprocess.ColumnTransformer, t preprocess.Table) (string, error) {
	h := xxhash.New()
	h.WriteString(ct.Signature())

	n := t.Len()
	var num [8]byte
	h.WriteString("|rows=" + strconv.Itoa(n))

	for _, col := range ct.Categorical {
		values, err := t.Categorical(col)
		if err != nil {
			return "", err
		}
		h.WriteString("|" + col)
		for _, v := range values {
			h.WriteString(strconv.Itoa(len(v)))
			h.WriteString(":")
			h.WriteString(v)
		}
	}
	for _, col := range ct.Numeric {
		values, err := t.Numeric(col)
		if err != nil {
			return "", err
		}
		h.WriteString("|" + col)
		for _, v := range values {
			binary.LittleEndian.PutUint64(num[:], math.Float64bits(v))
			h.Write(num[:])
		}
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// Load returns the cached fitted transformer and matrix for ct applied to t.
// A miss is reported with ok false and a nil error.
func (c *TransformCache) Load(ct *preprocess.ColumnTransformer, t preprocess.Table) (*preprocess.ColumnTransformer, *mat.Dense, bool, error) {
	key, err := c.Key(ct, t)
	if err != nil {
		return nil, nil, false, err
	}
	if !c.dv.Has(key) {
		return nil, nil, false, nil
	}

	b, err := c.dv.Read(key)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	var entry transformEntry
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&entry); err != nil {
		_ = c.dv.Erase(key)
		return nil, nil, false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	if entry.Transformer == nil || entry.Rows*entry.Cols != len(entry.Data) || entry.Rows == 0 || entry.Cols == 0 {
		_ = c.dv.Erase(key)
		return nil, nil, false, fmt.Errorf("cache entry %s is corrupt", key)
	}
	return entry.Transformer, mat.NewDense(entry.Rows, entry.Cols, entry.Data), true, nil
}

// Store records the fitted transformer ct and its output X for input t
func (c *TransformCache) Store(ct *preprocess.ColumnTransformer, t preprocess.Table, X *mat.Dense) error {
	key, err := c.Key(ct, t)
	if err != nil {
		return err
	}

	rows, cols := X.Dims()
	entry := transformEntry{
		Transformer: ct,
		Rows:        rows,
		Cols:        cols,
		Data:        mat.DenseCopyOf(X).RawMatrix().Data,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return c.dv.Write(key, buf.Bytes())
}

// Clear removes every cached entry
func (c *TransformCache) Clear() error {
	return c.dv.EraseAll()
}
