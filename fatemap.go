package lineage

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Direction selects which side of a transition map a fate map describes.
type Direction string

const (
	// DirectionForward describes the fates of the earlier cells: row i of
	// the fate map is the distribution of transition mass from row cell i
	// over the fate clusters.
	DirectionForward Direction = "forward"

	// DirectionBackward describes the origins of the later cells: the
	// normalized map is transposed first, so row j of the fate map is the
	// mass that column cell j receives from each cluster of earlier cells.
	DirectionBackward Direction = "backward"
)

// AggregateMode selects how normalized transition mass is condensed into
// cluster columns.
type AggregateMode string

const (
	// AggregateSum sums the normalized transition mass into each cluster.
	AggregateSum AggregateMode = "sum"

	// AggregateNormSum additionally scales every cluster column by its own
	// total, turning each column into a distribution over source cells.
	AggregateNormSum AggregateMode = "norm-sum"
)

// MapOptions configures FateMap. Start from DefaultMapOptions and override
// what you need; the zero value of Source, Direction and Mode also resolves
// to those defaults.
type MapOptions struct {
	// Fates selects the clusters to aggregate into. A nil or empty list
	// selects every distinct state label, sorted.
	Fates []FateSpec

	// Source names the transition map to read. Defaults to DefaultSource.
	Source string

	// Direction picks the map orientation. Defaults to DirectionForward.
	Direction Direction

	// Mode picks the aggregation flavor. Defaults to AggregateNormSum.
	Mode AggregateMode

	// SelectedTimes restricts the row cells to the given time points. A nil
	// list keeps every row. Values that match no cell are reported through
	// the logger and otherwise ignored.
	SelectedTimes []float64

	// FateCount switches the potency score from Shannon entropy to the
	// number of reachable clusters.
	FateCount bool

	// Logger receives progress and data warnings. nil means slog.Default.
	Logger *slog.Logger
}

// DefaultMapOptions returns the canonical FateMap configuration.
func DefaultMapOptions() MapOptions {
	return MapOptions{
		Source:    DefaultSource,
		Direction: DirectionForward,
		Mode:      AggregateNormSum,
	}
}

func applyMapDefaults(o *MapOptions) {
	if o.Source == "" {
		o.Source = DefaultSource
	}
	if o.Direction == "" {
		o.Direction = DirectionForward
	}
	if o.Mode == "" {
		o.Mode = AggregateNormSum
	}
}

func validateMapOptions(o *MapOptions) error {
	switch o.Direction {
	case DirectionForward, DirectionBackward:
	default:
		return fmt.Errorf("lineage: unknown direction %q", o.Direction)
	}
	switch o.Mode {
	case AggregateSum, AggregateNormSum:
	default:
		return fmt.Errorf("lineage: unknown aggregate mode %q", o.Mode)
	}
	return nil
}

// MapResult is a computed fate map and its derived quantities.
type MapResult struct {
	Source    string
	Direction Direction
	Mode      AggregateMode

	// Probabilities is the (row cells × clusters) fate map. Rows cover
	// every row cell; the time selection only gates the expanded views.
	Probabilities *mat.Dense

	// Groups describes the resolved mega-clusters over the column cells.
	Groups *FateGroups

	// RelativeBias is Probabilities scaled per column by ExpectedProb, the
	// enrichment of each cell's fate mass over the cluster's share of the
	// column cells.
	RelativeBias *mat.Dense

	// ExpectedProb is each cluster's fraction of the column cells.
	ExpectedProb []float64

	// Potency is the per-row-cell potency score, computed from the final
	// map rows. See PotencyScores for the two flavors.
	Potency []float64

	// RowCells and ColumnCells map the matrix axes into dataset cell ids.
	RowCells    []int
	ColumnCells []int

	// TimeMask flags the row positions inside the selected time window.
	TimeMask []bool

	// FateCount records which potency flavor Potency holds.
	FateCount bool

	n int
}

// CellColumn expands cluster column c into a dataset-length vector. Cells
// that are not row cells, or fall outside the selected time window, are NaN.
func (r *MapResult) CellColumn(c int) []float64 {
	out := nanVector(r.n)
	for p, cell := range r.RowCells {
		if r.TimeMask[p] {
			out[cell] = r.Probabilities.At(p, c)
		}
	}
	return out
}

// PotencyColumn expands the potency scores the same way as CellColumn.
func (r *MapResult) PotencyColumn() []float64 {
	out := nanVector(r.n)
	for p, cell := range r.RowCells {
		if r.TimeMask[p] {
			out[cell] = r.Potency[p]
		}
	}
	return out
}

// FateMap aggregates a transition map into per-cluster fate probabilities
// and registers the result on the dataset under the source name.
func FateMap(ds *Dataset, opts MapOptions) (*MapResult, error) {
	applyMapDefaults(&opts)
	if err := validateMapOptions(&opts); err != nil {
		return nil, err
	}
	log := orDefault(opts.Logger)
	res, err := computeFateMap(ds, &opts, log)
	if err != nil {
		return nil, err
	}
	ds.results.putFateMap(opts.Source, res)
	log.Info("fate map computed",
		"source", opts.Source,
		"direction", string(opts.Direction),
		"clusters", res.Groups.Len())
	return res, nil
}

// computeFateMap is the shared aggregation core behind FateMap,
// FatePotency, FateBias, map-sourced couplings and trajectories. Options
// must already have defaults applied.
func computeFateMap(ds *Dataset, opts *MapOptions, log *slog.Logger) (*MapResult, error) {
	t, err := ds.TransitionMap(opts.Source)
	if err != nil {
		return nil, err
	}
	rowCells, colCells := ds.cellIDT1, ds.cellIDT2
	if opts.Direction == DirectionBackward {
		rowCells, colCells = ds.cellIDT2, ds.cellIDT1
	}

	groups, err := resolveGroups(ds.statesAt(colCells), opts.Fates, opts.Source)
	if err != nil {
		return nil, err
	}

	timeMask, missing := selectTimePoints(ds.timesAt(rowCells), opts.SelectedTimes)
	for _, tp := range missing {
		log.Warn("selected time point matches no cell", "time", tp, "source", opts.Source)
	}
	if !anyTrue(timeMask) {
		return nil, fmt.Errorf("%w: selected times match no cell on %q",
			ErrNoValidCells, opts.Source)
	}

	p := aggregateClusters(RowNormalize(t), groups.Masks, opts.Direction)
	if opts.Mode == AggregateNormSum {
		normalizeColumns(p)
	}

	expected := make([]float64, groups.Len())
	for c, idx := range groups.Indices {
		expected[c] = float64(len(idx)) / float64(len(colCells))
	}

	return &MapResult{
		Source:        opts.Source,
		Direction:     opts.Direction,
		Mode:          opts.Mode,
		Probabilities: p,
		Groups:        groups,
		RelativeBias:  relativeBias(p, expected),
		ExpectedProb:  expected,
		Potency:       PotencyScores(p, opts.FateCount),
		RowCells:      rowCells,
		ColumnCells:   colCells,
		TimeMask:      timeMask,
		FateCount:     opts.FateCount,
		n:             ds.Len(),
	}, nil
}

// resolveGroups runs the selector, downgrading its empty-selection failure
// to the data-condition error carrying the source name. Structural
// failures (duplicate labels) pass through untouched.
func resolveGroups(states []string, fates []FateSpec, source string) (*FateGroups, error) {
	groups, err := SelectFateGroups(states, fates)
	if err != nil {
		if errors.Is(err, errEmptySelection) {
			return nil, fmt.Errorf("%w: fate selection on %q matches no cluster",
				ErrNoValidCells, source)
		}
		return nil, err
	}
	return groups, nil
}

// RowNormalize returns a dense copy of m with every row scaled to sum to
// one. Rows summing to zero are left as-is rather than divided. Inputs
// implementing mat.NonZeroDoer are walked sparsely.
func RowNormalize(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	sums := make([]float64, r)
	if nz, ok := m.(mat.NonZeroDoer); ok {
		nz.DoNonZero(func(i, _ int, v float64) {
			sums[i] += v
		})
		nz.DoNonZero(func(i, j int, v float64) {
			if sums[i] != 0 {
				out.Set(i, j, v/sums[i])
			}
		})
		return out
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sums[i] += m.At(i, j)
		}
	}
	for i := 0; i < r; i++ {
		if sums[i] == 0 {
			continue
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(i, j)/sums[i])
		}
	}
	return out
}

// aggregateClusters sums a row-normalized map into per-cluster columns.
// Forward keeps the row axis and buckets columns by mask; backward flips
// the output so rows are the map's columns and buckets rows by mask.
func aggregateClusters(norm *mat.Dense, masks [][]bool, dir Direction) *mat.Dense {
	r, c := norm.Dims()
	k := len(masks)
	if dir == DirectionForward {
		group := groupIndex(masks, c)
		p := mat.NewDense(r, k, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if g := group[j]; g >= 0 {
					p.Set(i, g, p.At(i, g)+norm.At(i, j))
				}
			}
		}
		return p
	}
	group := groupIndex(masks, r)
	p := mat.NewDense(c, k, nil)
	for i := 0; i < r; i++ {
		g := group[i]
		if g < 0 {
			continue
		}
		for j := 0; j < c; j++ {
			p.Set(j, g, p.At(j, g)+norm.At(i, j))
		}
	}
	return p
}

// groupIndex flattens disjoint masks into a position-to-group lookup,
// -1 for positions no mask covers.
func groupIndex(masks [][]bool, n int) []int {
	group := make([]int, n)
	for i := range group {
		group[i] = -1
	}
	for g, mask := range masks {
		for i, ok := range mask {
			if ok {
				group[i] = g
			}
		}
	}
	return group
}

// normalizeColumns scales each column of p by its total, in place. All-zero
// columns stay zero.
func normalizeColumns(p *mat.Dense) {
	r, c := p.Dims()
	for j := 0; j < c; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			sum += p.At(i, j)
		}
		if sum == 0 {
			continue
		}
		for i := 0; i < r; i++ {
			p.Set(i, j, p.At(i, j)/sum)
		}
	}
}

// relativeBias divides each column of p by the cluster's expected
// probability.
func relativeBias(p *mat.Dense, expected []float64) *mat.Dense {
	r, c := p.Dims()
	out := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out.Set(i, j, p.At(i, j)/expected[j])
		}
	}
	return out
}

// nanVector returns a length-n vector of NaN.
func nanVector(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
