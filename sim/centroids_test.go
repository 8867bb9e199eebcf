package sim

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCentroidCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "centroids.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const twoClusterCSV = `age,d1,d2,d3,d4,apache,insuf,va,icu,vam,preicu
60,0,0,0,0,15,0,1,500,0,0
85,9,9,9,9,30,3,0,1500,900,200
`

func TestLoadCentroidTable_SkipsHeader(t *testing.T) {
	table, err := LoadCentroidTable(writeCentroidCSV(t, twoClusterCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, table.NumClusters())
	assert.Equal(t, 11, table.NumFeatures())
	assert.Equal(t, 60.0, table.Row(0)[0])
}

func TestLoadCentroidTable_MissingFile(t *testing.T) {
	_, err := LoadCentroidTable(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestLoadCentroidTable_Malformed(t *testing.T) {
	path := writeCentroidCSV(t, "a,b\n1,notanumber\n")
	_, err := LoadCentroidTable(path)
	assert.Error(t, err)
}

func TestAssign_NearestCentroid(t *testing.T) {
	a := NewAssigner(writeCentroidCSV(t, twoClusterCSV))

	near0 := []float64{62, 0, 0, 0, 0, 14, 0, 1, 480, 10, 5}
	cluster, err := a.Assign(near0)
	require.NoError(t, err)
	assert.Equal(t, ClusterID(0), cluster)

	near1 := []float64{80, 8, 8, 8, 8, 28, 2, 0, 1400, 850, 180}
	cluster, err = a.Assign(near1)
	require.NoError(t, err)
	assert.Equal(t, ClusterID(1), cluster)
}

func TestAssign_Deterministic(t *testing.T) {
	a := NewAssigner(writeCentroidCSV(t, twoClusterCSV))
	features := []float64{70, 1, 2, 3, 4, 20, 1, 1, 700, 300, 50}
	first, err := a.Assign(features)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		got, err := a.Assign(features)
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

func TestAssign_TieResolvesToLowestIndex(t *testing.T) {
	// Two identical centroid rows: every feature vector is equidistant.
	csv := "1,2,3\n1,2,3\n"
	a := NewAssigner(writeCentroidCSV(t, csv))
	cluster, err := a.Assign([]float64{5, 5, 5})
	require.NoError(t, err)
	assert.Equal(t, ClusterID(0), cluster)
}

func TestAssign_FeatureCountMismatch(t *testing.T) {
	a := NewAssigner(writeCentroidCSV(t, twoClusterCSV))
	_, err := a.Assign([]float64{1, 2, 3})
	assert.Error(t, err)
}

func TestAssigner_ConcurrentFirstUseLoadsOnce(t *testing.T) {
	a := NewAssigner(writeCentroidCSV(t, twoClusterCSV))

	const goroutines = 50
	tables := make([]*CentroidTable, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			table, err := a.Table()
			assert.NoError(t, err)
			tables[i] = table
		}()
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		// all callers must observe the same memoized instance
		assert.Same(t, tables[0], tables[i])
	}
}

func TestAssigner_MissingSourceFailsEveryCall(t *testing.T) {
	a := NewAssigner(filepath.Join(t.TempDir(), "absent.csv"))
	_, err := a.Assign([]float64{1, 2, 3})
	require.Error(t, err)
	// memoized failure, never a silent default cluster
	_, err = a.Assign([]float64{1, 2, 3})
	require.Error(t, err)
}
