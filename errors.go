package lineage

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSelection indicates a structurally bad fate specification:
	// an empty spec list where one is required, fewer than two fates for a
	// hierarchy build, a duplicate label across top-level specs, or a
	// selection that matches no known cluster label at all.
	ErrInvalidSelection = errors.New("lineage: invalid fate selection")

	// ErrNoValidCells indicates that a time-window or fate filter selected
	// zero cells (or zero clusters) inside an operation.
	ErrNoValidCells = errors.New("lineage: no valid cells selected")

	// ErrInvalidFateCount indicates the wrong number of fate clusters for a
	// two-cluster operation such as FateBias.
	ErrInvalidFateCount = errors.New("lineage: operation requires exactly two fate clusters")

	// ErrUnknownSource indicates a requested transition-map name that is not
	// registered on the dataset.
	ErrUnknownSource = errors.New("lineage: unknown source map")
)

// errEmptySelection is the selector's empty-result failure. Operations that
// treat an empty selection as a data condition rather than a caller bug
// rewrap it as ErrNoValidCells.
var errEmptySelection = fmt.Errorf("%w: no requested label matches the annotation", ErrInvalidSelection)
