package lineage

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// benchDataset builds nEarly progenitors feeding nLate cells across four
// fate labels, with a random transition map and sparse clone matrix.
func benchDataset(b *testing.B, nEarly, nLate int) *Dataset {
	b.Helper()
	rng := rand.New(rand.NewSource(42))
	labels := []string{"A", "B", "C", "D"}

	n := nEarly + nLate
	states := make([]string, n)
	times := make([]float64, n)
	t1 := make([]int, nEarly)
	t2 := make([]int, nLate)
	for i := 0; i < nEarly; i++ {
		states[i] = "P"
		times[i] = 1
		t1[i] = i
	}
	for j := 0; j < nLate; j++ {
		id := nEarly + j
		states[id] = labels[j%len(labels)]
		times[id] = 2
		t2[j] = id
	}
	ds, err := NewDataset(states, times)
	require.NoError(b, err)
	require.NoError(b, ds.SetTransitionIndices(t1, t2))

	tmap := make([]float64, nEarly*nLate)
	for i := range tmap {
		tmap[i] = rng.Float64()
	}
	require.NoError(b, ds.AddTransitionMap(DefaultSource, mat.NewDense(nEarly, nLate, tmap)))

	clones := make([]float64, n*32)
	for i := range clones {
		if rng.Float64() < 0.05 {
			clones[i] = 1
		}
	}
	require.NoError(b, ds.SetClones(mat.NewDense(n, 32, clones)))
	return ds
}

// --- Fate Map ---

func benchFateMap(b *testing.B, n int, mode AggregateMode) {
	b.Helper()
	ds := benchDataset(b, n, n)
	opts := quietMapOptions()
	opts.Mode = mode
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := FateMap(ds, opts); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFateMap_Sum_100(b *testing.B)     { benchFateMap(b, 100, AggregateSum) }
func BenchmarkFateMap_Sum_500(b *testing.B)     { benchFateMap(b, 500, AggregateSum) }
func BenchmarkFateMap_NormSum_100(b *testing.B) { benchFateMap(b, 100, AggregateNormSum) }
func BenchmarkFateMap_NormSum_500(b *testing.B) { benchFateMap(b, 500, AggregateNormSum) }

// --- Row Normalization ---

func benchRowNormalize(b *testing.B, n int) {
	b.Helper()
	rng := rand.New(rand.NewSource(42))
	data := make([]float64, n*n)
	for i := range data {
		data[i] = rng.Float64()
	}
	m := mat.NewDense(n, n, data)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RowNormalize(m)
	}
}

func BenchmarkRowNormalize_100(b *testing.B) { benchRowNormalize(b, 100) }
func BenchmarkRowNormalize_500(b *testing.B) { benchRowNormalize(b, 500) }

// --- Fate Coupling ---

func benchCloneCoupling(b *testing.B, n int) {
	b.Helper()
	ds := benchDataset(b, n, n)
	opts := quietCouplingOptions()
	opts.Source = CloneSource
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := FateCoupling(ds, opts); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFateCoupling_Clone_100(b *testing.B) { benchCloneCoupling(b, 100) }
func BenchmarkFateCoupling_Clone_500(b *testing.B) { benchCloneCoupling(b, 500) }

// --- Fate Hierarchy ---

func benchHierarchy(b *testing.B, n int) {
	b.Helper()
	ds := benchDataset(b, n, n)
	opts := quietHierarchyOptions()
	opts.Fates = []FateSpec{Leaf("A"), Leaf("B"), Leaf("C"), Leaf("D")}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := FateHierarchy(ds, opts); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFateHierarchy_100(b *testing.B) { benchHierarchy(b, 100) }
func BenchmarkFateHierarchy_500(b *testing.B) { benchHierarchy(b, 500) }
