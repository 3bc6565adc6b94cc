package lineage

// FigureConfig carries presentation parameters for an EmbeddingRenderer.
// Operations pass it through explicitly; no global figure state is
// consulted.
type FigureConfig struct {
	// Width and Height are the per-panel figure size in inches.
	Width, Height float64

	// PointSize is the scatter marker size.
	PointSize float64

	// TargetAlpha is the opacity of the target-cluster overlay.
	TargetAlpha float64

	// OutDir is the directory saved figures go into.
	OutDir string

	// Format is the saved figure's file extension, without the dot.
	Format string
}

// DefaultFigureConfig returns the conventional figure parameters.
func DefaultFigureConfig() FigureConfig {
	return FigureConfig{
		Width:       4,
		Height:      3.5,
		PointSize:   2,
		TargetAlpha: 0.2,
		OutDir:      "figure",
		Format:      "png",
	}
}

// EmbeddingRenderer draws cell groups on the dataset's 2-D embedding.
// Implementations live outside this package. Operations treat every
// rendering failure as a warning, never as an operation failure.
type EmbeddingRenderer interface {
	// Scatter draws one panel. x and y are the embedding columns,
	// selected flags the foreground cells, and target, which may be nil,
	// flags cluster cells to overlay at FigureConfig.TargetAlpha.
	Scatter(cfg FigureConfig, x, y []float64, selected, target []bool, title string) error

	// Save writes the accumulated panels under the given base name.
	Save(cfg FigureConfig, name string) error
}
