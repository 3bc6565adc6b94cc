package lineage

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// negligibleProb is the mass below which a fate is not counted as
// reachable.
const negligibleProb = 1e-10

// PotencyScores computes a per-row potency score from a fate map. The
// default flavor renormalizes each row to a distribution and takes its
// Shannon entropy in nats; all-zero rows score zero. With fateCount set it
// instead counts the clusters holding non-negligible mass.
func PotencyScores(p *mat.Dense, fateCount bool) []float64 {
	r, c := p.Dims()
	out := make([]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, p)
		if fateCount {
			n := 0
			for _, v := range row {
				if v > negligibleProb {
					n++
				}
			}
			out[i] = float64(n)
			continue
		}
		sum := floats.Sum(row)
		if sum == 0 {
			continue
		}
		floats.Scale(1/sum, row)
		out[i] = stat.Entropy(row)
	}
	return out
}

// PotencyResult is a registered per-cell potency score.
type PotencyResult struct {
	Source    string
	Direction Direction
	FateCount bool

	// Values holds one score per row cell of the underlying map.
	Values []float64

	// RowCells maps Values into dataset cell ids.
	RowCells []int

	// TimeMask flags the row positions inside the selected time window.
	TimeMask []bool

	n int
}

// CellValues expands the scores into a dataset-length vector, NaN outside
// the row cells and the time window.
func (r *PotencyResult) CellValues() []float64 {
	out := nanVector(r.n)
	for p, cell := range r.RowCells {
		if r.TimeMask[p] {
			out[cell] = r.Values[p]
		}
	}
	return out
}

// FatePotency scores how multipotent each cell still is across the
// selected fates and registers the result under the source name. It shares
// MapOptions with FateMap; the potency flavor is chosen with
// MapOptions.FateCount. Scores come from the final fate map, so with
// AggregateNormSum they reflect the column-scaled distributions.
func FatePotency(ds *Dataset, opts MapOptions) (*PotencyResult, error) {
	applyMapDefaults(&opts)
	if err := validateMapOptions(&opts); err != nil {
		return nil, err
	}
	log := orDefault(opts.Logger)
	mres, err := computeFateMap(ds, &opts, log)
	if err != nil {
		return nil, err
	}
	res := &PotencyResult{
		Source:    opts.Source,
		Direction: opts.Direction,
		FateCount: opts.FateCount,
		Values:    mres.Potency,
		RowCells:  mres.RowCells,
		TimeMask:  mres.TimeMask,
		n:         ds.Len(),
	}
	ds.results.putFatePotency(opts.Source, res)
	log.Info("fate potency computed",
		"source", opts.Source,
		"fate_count", opts.FateCount,
		"cells", len(res.Values))
	return res, nil
}
