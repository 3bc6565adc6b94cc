package lineage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func quietHierarchyOptions() HierarchyOptions {
	opts := DefaultHierarchyOptions()
	opts.Logger = nopLogger()
	return opts
}

// TestFateHierarchy_ScriptedMerges drives the builder with a kernel that
// returns fixed couplings per round, pinning the exact merge order.
func TestFateHierarchy_ScriptedMerges(t *testing.T) {
	ds, err := NewDataset(
		[]string{"A", "A", "B", "B", "C", "C", "D", "D"},
		[]float64{1, 1, 1, 1, 1, 1, 1, 1},
	)
	require.NoError(t, err)
	require.NoError(t, ds.SetClones(mat.NewDense(8, 2, []float64{
		1, 0, 1, 0, 1, 0, 1, 0,
		0, 1, 0, 1, 0, 1, 0, 1,
	})))

	// Round one strongly couples A with B, round two C with D.
	script := map[int]*mat.SymDense{
		4: mat.NewSymDense(4, []float64{
			1, 0.9, 0.1, 0.1,
			0.9, 1, 0.1, 0.1,
			0.1, 0.1, 1, 0.2,
			0.1, 0.1, 0.2, 1,
		}),
		3: mat.NewSymDense(3, []float64{
			1, 0.1, 0.1,
			0.1, 1, 0.8,
			0.1, 0.8, 1,
		}),
	}
	opts := quietHierarchyOptions()
	opts.Fates = []FateSpec{Leaf("A"), Leaf("B"), Leaf("C"), Leaf("D")}
	opts.Kernel = func(data mat.Matrix, method CouplingMethod) (*mat.SymDense, error) {
		_, k := data.Dims()
		require.Contains(t, script, k, "unexpected round size %d", k)
		return script[k], nil
	}

	res, err := FateHierarchy(ds, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D"}, res.FateNames)
	assert.Equal(t, 6, res.Root)
	assert.Equal(t, map[int]int{0: 4, 1: 4, 2: 5, 3: 5, 4: 6, 5: 6}, res.ParentMap)
	assert.Equal(t, []int{0, 1}, res.NodeGroups[4])
	assert.Equal(t, []int{2, 3}, res.NodeGroups[5])
	assert.Equal(t, []string{"A", "B"}, res.NodeMapping[4])
	assert.Equal(t, []string{"C", "D"}, res.NodeMapping[5])
	_, hasRootGroup := res.NodeGroups[res.Root]
	assert.False(t, hasRootGroup, "root stays implicit")

	require.Len(t, res.History, 2)
	assert.Equal(t, []int{0, 1, 2, 3}, res.History[0].NodeNames)
	assert.Equal(t, [2]int{0, 1}, res.History[0].Pair)
	assert.Equal(t, []int{4, 2, 3}, res.History[1].NodeNames)
	assert.Equal(t, [2]int{1, 2}, res.History[1].Pair)
	// The history keeps the unmasked coupling.
	assert.True(t, mat.EqualApprox(mat.DenseCopyOf(script[4]), res.History[0].Coupling, 1e-12))

	// Every leaf reaches the root.
	for leaf := range res.FateNames {
		cur, steps := leaf, 0
		for cur != res.Root {
			next, ok := res.ParentMap[cur]
			require.True(t, ok, "node %d has no parent", cur)
			cur = next
			steps++
			require.LessOrEqual(t, steps, len(res.FateNames))
		}
	}
}

func TestFateHierarchy_CloneKernel(t *testing.T) {
	ds := barcodedDataset(t)
	opts := quietHierarchyOptions()
	opts.Fates = []FateSpec{Leaf("A"), Leaf("B"), Leaf("C")}

	res, err := FateHierarchy(ds, opts)
	require.NoError(t, err)

	// SW coupling over the clone sums is [[1,.4,0],[.4,1,.447],[0,.447,1]],
	// so B and C merge first.
	require.Len(t, res.History, 1)
	assert.Equal(t, [2]int{1, 2}, res.History[0].Pair)
	assert.InDelta(t, 0.4472135954999579, res.History[0].Coupling.At(1, 2), 1e-12)

	assert.Equal(t, 4, res.Root)
	assert.Equal(t, map[int]int{1: 3, 2: 3, 0: 4, 3: 4}, res.ParentMap)
	assert.Equal(t, []string{"B", "C"}, res.NodeMapping[3])

	_, ok := ds.Results().FateHierarchy(CloneSource)
	assert.True(t, ok)
}

func TestFateHierarchy_TwoLeavesMapSource(t *testing.T) {
	ds := progenitorDataset(t)
	opts := quietHierarchyOptions()
	opts.Source = DefaultSource
	opts.Fates = []FateSpec{Leaf("A"), Leaf("B")}

	res, err := FateHierarchy(ds, opts)
	require.NoError(t, err)

	// Two leaves join directly under the root with no merge rounds.
	assert.Empty(t, res.History)
	assert.Equal(t, []string{"A", "B"}, res.FateNames)
	assert.Equal(t, 2, res.Root)
	assert.Equal(t, map[int]int{0: 2, 1: 2}, res.ParentMap)
	assert.Equal(t, map[int][]string{0: {"A"}, 1: {"B"}}, res.NodeMapping)
}

func TestFateHierarchy_Errors(t *testing.T) {
	t.Run("TooFewSpecs", func(t *testing.T) {
		ds := barcodedDataset(t)
		opts := quietHierarchyOptions()
		opts.Fates = []FateSpec{Leaf("A")}
		_, err := FateHierarchy(ds, opts)
		assert.ErrorIs(t, err, ErrInvalidSelection)
	})
	t.Run("ResolvesToOne", func(t *testing.T) {
		ds := barcodedDataset(t)
		opts := quietHierarchyOptions()
		opts.Fates = []FateSpec{Leaf("A"), Leaf("Z")}
		_, err := FateHierarchy(ds, opts)
		assert.ErrorIs(t, err, ErrInvalidSelection)
	})
	t.Run("UnknownMapSource", func(t *testing.T) {
		ds := progenitorDataset(t)
		opts := quietHierarchyOptions()
		opts.Source = "missing"
		opts.Fates = []FateSpec{Leaf("A"), Leaf("B")}
		_, err := FateHierarchy(ds, opts)
		assert.ErrorIs(t, err, ErrUnknownSource)
	})
	t.Run("NoCloneMatrix", func(t *testing.T) {
		ds := progenitorDataset(t)
		opts := quietHierarchyOptions()
		opts.Fates = []FateSpec{Leaf("A"), Leaf("B")}
		_, err := FateHierarchy(ds, opts)
		assert.ErrorIs(t, err, ErrUnknownSource)
	})
}

func TestMergeCandidates(t *testing.T) {
	floor := -100.0

	// A unique maximum pins both scans to the same entry.
	x := mat.NewDense(3, 3, []float64{
		floor, 0.2, 0.3,
		floor, floor, 0.8,
		floor, floor, floor,
	})
	ii, jj := mergeCandidates(x)
	assert.Equal(t, 1, ii)
	assert.Equal(t, 2, jj)

	// On ties the scans are independent: rows find 0.9 first at row 0
	// (entry (0,3)), columns find it first at column 2 (entry (1,2)), so
	// the chosen pair (0,2) is not itself a maximal entry.
	x = mat.NewDense(4, 4, []float64{
		floor, 0.1, 0.1, 0.9,
		floor, floor, 0.9, 0.1,
		floor, floor, floor, 0.1,
		floor, floor, floor, floor,
	})
	ii, jj = mergeCandidates(x)
	assert.Equal(t, 0, ii)
	assert.Equal(t, 2, jj)
}
