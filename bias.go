package lineage

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// defaultPseudoCount regularizes the bias ratio when PseudoCount is left
// at zero.
const defaultPseudoCount = 1e-10

// BiasOptions configures FateBias. Start from DefaultBiasOptions and
// override what you need.
type BiasOptions struct {
	// Fates must resolve to exactly two mega-clusters; the bias measures
	// commitment toward the first.
	Fates []FateSpec

	// Source, Direction, Mode and SelectedTimes configure the underlying
	// fate map as in MapOptions.
	Source        string
	Direction     Direction
	Mode          AggregateMode
	SelectedTimes []float64

	// SumProbThreshold is the combined-mass cutoff: cells whose two-fate
	// mass stays at or below it keep the neutral score.
	// DefaultBiasOptions sets 0.05.
	SumProbThreshold float64

	// PseudoCount scales the regularizer added to both fate vectors,
	// relative to the largest observed fate probability. Zero means 1e-10.
	PseudoCount float64

	// Logger receives progress and data warnings. nil means slog.Default.
	Logger *slog.Logger
}

// DefaultBiasOptions returns the canonical FateBias configuration.
func DefaultBiasOptions() BiasOptions {
	return BiasOptions{
		Source:           DefaultSource,
		Direction:        DirectionForward,
		Mode:             AggregateNormSum,
		SumProbThreshold: 0.05,
	}
}

func applyBiasDefaults(o *BiasOptions) {
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

func validateBiasOptions(o *BiasOptions) error {
	if o.SumProbThreshold < 0 {
		return fmt.Errorf("lineage: sum-probability threshold must be >= 0, got %v", o.SumProbThreshold)
	}
	if o.PseudoCount < 0 {
		return fmt.Errorf("lineage: pseudo count must be >= 0, got %v", o.PseudoCount)
	}
	mo := MapOptions{Direction: o.Direction, Mode: o.Mode}
	return validateMapOptions(&mo)
}

// BiasResult is a registered two-fate bias vector.
type BiasResult struct {
	Source    string
	Direction Direction

	// Names are the two resolved mega-cluster names; Values measures
	// commitment toward Names[0].
	Names [2]string

	// Values is dataset-length. Cells outside the map rows, outside the
	// time window or at or below the mass cutoff keep the neutral 0.5;
	// committed cells approach 1 (first fate) or 0 (second fate).
	Values []float64
}

// FateBias scores each cell's preference between two fate clusters as
// P(first) / (P(first)+P(second)) with a pseudo-count regularizer, and
// registers the result under the source name.
func FateBias(ds *Dataset, opts BiasOptions) (*BiasResult, error) {
	applyBiasDefaults(&opts)
	if err := validateBiasOptions(&opts); err != nil {
		return nil, err
	}
	if len(opts.Fates) != 2 {
		return nil, fmt.Errorf("%w: got %d fate specs", ErrInvalidFateCount, len(opts.Fates))
	}
	log := orDefault(opts.Logger)
	mopts := MapOptions{
		Fates:         opts.Fates,
		Source:        opts.Source,
		Direction:     opts.Direction,
		Mode:          opts.Mode,
		SelectedTimes: opts.SelectedTimes,
	}
	mres, err := computeFateMap(ds, &mopts, log)
	if err != nil {
		return nil, err
	}
	if mres.Groups.Len() != 2 {
		return nil, fmt.Errorf("%w: selection resolved to %d clusters",
			ErrInvalidFateCount, mres.Groups.Len())
	}

	pseudo := opts.PseudoCount
	if pseudo == 0 {
		pseudo = defaultPseudoCount
	}
	fv1 := mat.Col(nil, 0, mres.Probabilities)
	fv2 := mat.Col(nil, 1, mres.Probabilities)
	c0 := pseudo * math.Max(floats.Max(fv1), floats.Max(fv2))

	values := make([]float64, ds.Len())
	for i := range values {
		values[i] = 0.5
	}
	for p, cell := range mres.RowCells {
		if !mres.TimeMask[p] {
			continue
		}
		a := fv1[p] + c0
		tot := a + fv2[p] + c0
		if tot > opts.SumProbThreshold {
			values[cell] = a / tot
		}
	}

	res := &BiasResult{
		Source:    opts.Source,
		Direction: opts.Direction,
		Names:     [2]string{mres.Groups.Names[0], mres.Groups.Names[1]},
		Values:    values,
	}
	ds.results.putFateBias(opts.Source, res)
	log.Info("fate bias computed",
		"source", opts.Source,
		"fates", res.Names[0]+" vs "+res.Names[1])
	return res, nil
}
