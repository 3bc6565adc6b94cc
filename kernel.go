package lineage

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CouplingMethod names a normalization scheme for turning co-occurrence
// data into a coupling matrix.
type CouplingMethod string

const (
	// CouplingSW normalizes the raw dot-product coupling of each cluster
	// pair by the geometric mean of their self-couplings.
	CouplingSW CouplingMethod = "SW"

	// CouplingWeinreb computes the sample covariance between clusters,
	// scaled by the product of their mean occupancies.
	CouplingWeinreb CouplingMethod = "Weinreb"
)

// CouplingKernel condenses an (observations × clusters) matrix into a
// symmetric (clusters × clusters) coupling matrix. Custom kernels can be
// injected through CouplingOptions.Kernel; NormalizedCovariance is the
// default.
type CouplingKernel func(data mat.Matrix, method CouplingMethod) (*mat.SymDense, error)

// NormalizedCovariance is the built-in coupling kernel. It dispatches on
// the method tag and fails on tags it does not implement, so custom
// methods require a custom kernel.
func NormalizedCovariance(data mat.Matrix, method CouplingMethod) (*mat.SymDense, error) {
	r, c := data.Dims()
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("lineage: coupling kernel got an empty %dx%d matrix", r, c)
	}
	switch method {
	case CouplingSW:
		return swCoupling(data), nil
	case CouplingWeinreb:
		return weinrebCoupling(data), nil
	default:
		return nil, fmt.Errorf("lineage: unknown coupling method %q", method)
	}
}

// swCoupling computes dataᵀ·data and divides entry (j,k) by
// sqrt(X[j,j]·X[k,k]). Pairs involving a cluster with zero self-coupling
// come out as zero rather than NaN.
func swCoupling(data mat.Matrix) *mat.SymDense {
	_, c := data.Dims()
	var gram mat.SymDense
	gram.SymOuterK(1, data.T())

	scale := make([]float64, c)
	for j := 0; j < c; j++ {
		scale[j] = math.Sqrt(gram.At(j, j))
	}
	out := mat.NewSymDense(c, nil)
	for j := 0; j < c; j++ {
		for k := j; k < c; k++ {
			if d := scale[j] * scale[k]; d != 0 {
				out.SetSym(j, k, gram.At(j, k)/d)
			}
		}
	}
	return out
}

// weinrebCoupling computes the sample covariance of the clusters and
// divides entry (j,k) by the product of the cluster means, offset by a
// tiny epsilon against all-zero clusters. The covariance of fewer than two
// observations is undefined; that case collapses to an all-zero coupling.
func weinrebCoupling(data mat.Matrix) *mat.SymDense {
	r, c := data.Dims()
	if r < 2 {
		return mat.NewSymDense(c, nil)
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	means := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, data)
		means[j] = stat.Mean(col, nil) + 1e-100
	}
	out := mat.NewSymDense(c, nil)
	for j := 0; j < c; j++ {
		for k := j; k < c; k++ {
			out.SetSym(j, k, cov.At(j, k)/(means[j]*means[k]))
		}
	}
	return out
}
