package lineage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestPotencyScores_Entropy(t *testing.T) {
	p := mat.NewDense(3, 2, []float64{
		0.75, 0.25,
		0, 0,
		0.5, 0.5,
	})
	got := PotencyScores(p, false)

	// -(0.75 ln 0.75 + 0.25 ln 0.25)
	assert.InDelta(t, 0.5623351446188083, got[0], 1e-12)
	assert.Zero(t, got[1])
	assert.InDelta(t, math.Ln2, got[2], 1e-12)
}

func TestPotencyScores_RenormalizesRows(t *testing.T) {
	// Rows scale to the same distribution, so the same entropy.
	p := mat.NewDense(2, 2, []float64{
		0.2, 0.2,
		3, 3,
	})
	got := PotencyScores(p, false)
	assert.InDelta(t, got[0], got[1], 1e-12)
	assert.InDelta(t, math.Ln2, got[0], 1e-12)
}

func TestPotencyScores_FateCount(t *testing.T) {
	p := mat.NewDense(3, 2, []float64{
		1e-12, 0.3,
		0.2, 0.2,
		0, 0,
	})
	got := PotencyScores(p, true)
	assert.Equal(t, []float64{1, 2, 0}, got)
}

func TestFatePotency_Entropy(t *testing.T) {
	ds := progenitorDataset(t)
	res, err := FatePotency(ds, quietMapOptions())
	require.NoError(t, err)

	assert.False(t, res.FateCount)
	require.Len(t, res.Values, 2)
	// Row 0 of the norm-sum map is [1, 1/3], renormalized [0.75, 0.25].
	assert.InDelta(t, 0.5623351446188083, res.Values[0], 1e-12)
	assert.Zero(t, res.Values[1])

	full := res.CellValues()
	require.Len(t, full, 5)
	assert.InDelta(t, res.Values[0], full[0], 1e-12)
	assert.True(t, math.IsNaN(full[3]))

	_, ok := ds.Results().FatePotency(DefaultSource)
	assert.True(t, ok)
}

func TestFatePotency_FateCount(t *testing.T) {
	ds := progenitorDataset(t)
	opts := quietMapOptions()
	opts.Mode = AggregateSum
	opts.FateCount = true

	res, err := FatePotency(ds, opts)
	require.NoError(t, err)
	assert.True(t, res.FateCount)
	assert.Equal(t, []float64{2, 1}, res.Values)
}
