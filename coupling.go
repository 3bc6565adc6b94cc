package lineage

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"
)

// CouplingOptions configures FateCoupling. Start from
// DefaultCouplingOptions and override what you need.
type CouplingOptions struct {
	// Fates selects the clusters to couple. A nil or empty list selects
	// every distinct state label, sorted.
	Fates []FateSpec

	// Source names the input: a registered transition map, or CloneSource
	// for the clonal barcode matrix. Defaults to DefaultSource.
	Source string

	// SelectedTimes restricts the contributing cells to the given time
	// points. For a map source this filters the map's row cells; for
	// CloneSource it filters the whole cell table.
	SelectedTimes []float64

	// Method tags the kernel normalization. Defaults to CouplingSW.
	Method CouplingMethod

	// MapMode is the fate-map aggregation used when Source is a transition
	// map. Defaults to AggregateSum.
	MapMode AggregateMode

	// Kernel condenses the assembled data into the coupling matrix.
	// Defaults to NormalizedCovariance.
	Kernel CouplingKernel

	// Logger receives progress and data warnings. nil means slog.Default.
	Logger *slog.Logger
}

// DefaultCouplingOptions returns the canonical FateCoupling configuration.
func DefaultCouplingOptions() CouplingOptions {
	return CouplingOptions{
		Source:  DefaultSource,
		Method:  CouplingSW,
		MapMode: AggregateSum,
	}
}

func applyCouplingDefaults(o *CouplingOptions) {
	if o.Source == "" {
		o.Source = DefaultSource
	}
	if o.Method == "" {
		o.Method = CouplingSW
	}
	if o.MapMode == "" {
		o.MapMode = AggregateSum
	}
	if o.Kernel == nil {
		o.Kernel = NormalizedCovariance
	}
}

func validateCouplingOptions(o *CouplingOptions) error {
	switch o.MapMode {
	case AggregateSum, AggregateNormSum:
	default:
		return fmt.Errorf("lineage: unknown aggregate mode %q", o.MapMode)
	}
	return nil
}

// CouplingResult is a registered fate-coupling matrix.
type CouplingResult struct {
	Source string
	Method CouplingMethod

	// Matrix is the symmetric (clusters × clusters) coupling.
	Matrix *mat.SymDense

	// Names are the resolved mega-cluster names indexing Matrix.
	Names []string
}

// FateCoupling measures how strongly each pair of fate clusters shares
// lineage, from either clonal barcodes or an aggregated transition map, and
// registers the result under the source name.
func FateCoupling(ds *Dataset, opts CouplingOptions) (*CouplingResult, error) {
	applyCouplingDefaults(&opts)
	if err := validateCouplingOptions(&opts); err != nil {
		return nil, err
	}
	log := orDefault(opts.Logger)
	y, names, err := couplingMatrix(ds, opts.Fates, &opts, log)
	if err != nil {
		return nil, err
	}
	res := &CouplingResult{
		Source: opts.Source,
		Method: opts.Method,
		Matrix: y,
		Names:  names,
	}
	ds.results.putFateCoupling(opts.Source, res)
	log.Info("fate coupling computed",
		"source", opts.Source,
		"method", string(opts.Method),
		"clusters", len(names))
	return res, nil
}

// couplingMatrix assembles the kernel input for the requested source and
// runs the kernel. The hierarchy builder calls it once per merge round.
// Options must already have defaults applied.
func couplingMatrix(ds *Dataset, fates []FateSpec, opts *CouplingOptions, log *slog.Logger) (*mat.SymDense, []string, error) {
	var (
		data  mat.Matrix
		names []string
	)
	if opts.Source == CloneSource {
		coarse, groups, err := cloneGroupData(ds, fates, opts.SelectedTimes, log)
		if err != nil {
			return nil, nil, err
		}
		data = coarse.T()
		names = groups.Names
	} else {
		mopts := MapOptions{
			Fates:         fates,
			Source:        opts.Source,
			Direction:     DirectionForward,
			Mode:          opts.MapMode,
			SelectedTimes: opts.SelectedTimes,
		}
		mres, err := computeFateMap(ds, &mopts, log)
		if err != nil {
			return nil, nil, err
		}
		data = selectRows(mres.Probabilities, mres.TimeMask)
		names = mres.Groups.Names
	}
	y, err := opts.Kernel(data, opts.Method)
	if err != nil {
		return nil, nil, err
	}
	return y, names, nil
}

// cloneGroupData time-filters the cell table, resolves the fate groups over
// the surviving cells and sums their clone rows per group.
func cloneGroupData(ds *Dataset, fates []FateSpec, selectedTimes []float64, log *slog.Logger) (*mat.Dense, *FateGroups, error) {
	cells, err := cloneCells(ds, selectedTimes, log)
	if err != nil {
		return nil, nil, err
	}
	groups, err := resolveGroups(ds.statesAt(cells), fates, CloneSource)
	if err != nil {
		return nil, nil, err
	}
	return AggregateCloneGroups(ds.clones, cells, groups), groups, nil
}

// cloneCells applies the time selection to the whole cell table for
// clone-sourced couplings.
func cloneCells(ds *Dataset, selectedTimes []float64, log *slog.Logger) ([]int, error) {
	if ds.clones == nil {
		return nil, fmt.Errorf("%w: %q (no clone matrix registered)", ErrUnknownSource, CloneSource)
	}
	mask, missing := selectTimePoints(ds.times, selectedTimes)
	for _, tp := range missing {
		log.Warn("selected time point matches no cell", "time", tp, "source", CloneSource)
	}
	cells := trueIndices(mask)
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: selected times match no cell on %q",
			ErrNoValidCells, CloneSource)
	}
	return cells, nil
}

// AggregateCloneGroups sums the clone rows of each group's cells into one
// row per mega-cluster, producing a (clusters × clones) matrix. The group
// masks index positions of cells, not the full clone matrix. Clone matrices
// implementing mat.NonZeroDoer are walked sparsely.
func AggregateCloneGroups(clones mat.Matrix, cells []int, groups *FateGroups) *mat.Dense {
	rows, nclones := clones.Dims()
	out := mat.NewDense(groups.Len(), nclones, nil)

	rowGroup := make([]int, rows)
	for i := range rowGroup {
		rowGroup[i] = -1
	}
	group := groupIndex(groups.Masks, len(cells))
	for p, cell := range cells {
		rowGroup[cell] = group[p]
	}

	if nz, ok := clones.(mat.NonZeroDoer); ok {
		nz.DoNonZero(func(i, j int, v float64) {
			if g := rowGroup[i]; g >= 0 {
				out.Set(g, j, out.At(g, j)+v)
			}
		})
		return out
	}
	for i := 0; i < rows; i++ {
		g := rowGroup[i]
		if g < 0 {
			continue
		}
		for j := 0; j < nclones; j++ {
			if v := clones.At(i, j); v != 0 {
				out.Set(g, j, out.At(g, j)+v)
			}
		}
	}
	return out
}

// selectRows returns the rows of p flagged in mask, or p itself when every
// row is flagged.
func selectRows(p *mat.Dense, mask []bool) *mat.Dense {
	idx := trueIndices(mask)
	if r, _ := p.Dims(); len(idx) == r {
		return p
	}
	_, c := p.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for o, i := range idx {
		out.SetRow(o, p.RawRowView(i))
	}
	return out
}
