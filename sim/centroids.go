package sim

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CentroidTable is the fixed matrix of cluster centroids: one row per
// cluster, one column per clustering feature. Read-only after load.
type CentroidTable struct {
	m *mat.Dense
}

// NumClusters returns the number of centroid rows.
func (t *CentroidTable) NumClusters() int {
	r, _ := t.m.Dims()
	return r
}

// NumFeatures returns the number of feature columns.
func (t *CentroidTable) NumFeatures() int {
	_, c := t.m.Dims()
	return c
}

// Row returns a copy of centroid i.
func (t *CentroidTable) Row(i int) []float64 {
	return mat.Row(nil, i, t.m)
}

// LoadCentroidTable reads a centroid CSV: one row per cluster, one numeric
// column per feature. A leading header row is skipped if present. A missing
// or malformed file is a configuration error.
func LoadCentroidTable(path string) (*CentroidTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening centroid source: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading centroid source %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("centroid source %s is empty", path)
	}

	// Detect and drop a header row: any non-numeric field in the first row.
	start := 0
	for _, field := range records[0] {
		if _, err := strconv.ParseFloat(field, 64); err != nil {
			start = 1
			break
		}
	}
	rows := records[start:]
	if len(rows) == 0 {
		return nil, fmt.Errorf("centroid source %s has a header but no data rows", path)
	}

	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, rec := range rows {
		if len(rec) != cols {
			return nil, fmt.Errorf("centroid source %s: row %d has %d columns, want %d", path, i, len(rec), cols)
		}
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("centroid source %s: row %d column %d is not numeric: %w", path, i, j, err)
			}
			data = append(data, v)
		}
	}

	logrus.Debugf("loaded %d centroids with %d features from %s", len(rows), cols, path)
	return &CentroidTable{m: mat.NewDense(len(rows), cols, data)}, nil
}

// Assigner maps a patient feature vector to its nearest centroid's cluster.
// The backing table is loaded lazily on first use and memoized for the
// assigner's lifetime; concurrent first use performs the load exactly once.
type Assigner struct {
	path string

	once  sync.Once
	table *CentroidTable
	err   error
}

// NewAssigner creates an Assigner backed by the centroid CSV at path.
// The file is not touched until the first Assign or Table call.
func NewAssigner(path string) *Assigner {
	return &Assigner{path: path}
}

// NewAssignerFromTable creates an Assigner over an already-loaded table.
func NewAssignerFromTable(table *CentroidTable) *Assigner {
	a := &Assigner{table: table}
	a.once.Do(func() {})
	return a
}

// Table returns the memoized centroid table, loading it on first call.
func (a *Assigner) Table() (*CentroidTable, error) {
	a.once.Do(func() {
		a.table, a.err = LoadCentroidTable(a.path)
	})
	return a.table, a.err
}

// Assign returns the ClusterID whose centroid has the minimum Euclidean
// distance to the feature vector. Ties resolve to the lowest index.
func (a *Assigner) Assign(features []float64) (ClusterID, error) {
	table, err := a.Table()
	if err != nil {
		return 0, err
	}
	if len(features) != table.NumFeatures() {
		return 0, fmt.Errorf("feature vector has %d features, centroid table expects %d",
			len(features), table.NumFeatures())
	}

	best := 0
	bestDist := math.Inf(1)
	for i := 0; i < table.NumClusters(); i++ {
		d := floats.Distance(features, table.Row(i), 2)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return ClusterID(best), nil
}
