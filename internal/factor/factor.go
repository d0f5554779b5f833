// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

// Package factor implements the feature extractor: a factor-analysis model
// mapping raw ordinal survey responses to a small number of continuous
// latent factors.
//
// Fit extracts initial loadings from the eigendecomposition of the item
// correlation matrix, applies a varimax rotation followed by the promax
// oblique transform, and derives regression-method score weights. Transform
// is a deterministic linear projection of a standardized response through
// those weights; identical params and input always produce identical output.
//
// The numerical heavy lifting (eigendecomposition, SVD, linear solves) is
// delegated to gonum.
package factor

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sentinel errors for the fit/transform contract.
var (
	// ErrNotFitted indicates Transform was called without fitted params.
	ErrNotFitted = errors.New("factor: model not fitted")

	// ErrDimensionMismatch indicates a response whose length does not match
	// the fitted item count.
	ErrDimensionMismatch = errors.New("factor: response dimension mismatch")

	// ErrInsufficientCorpus indicates a fit corpus with fewer respondents
	// than latent factors.
	ErrInsufficientCorpus = errors.New("factor: corpus smaller than factor count")

	// ErrRaggedCorpus indicates fit rows of unequal length.
	ErrRaggedCorpus = errors.New("factor: corpus rows have unequal length")
)

// Config controls the fit.
type Config struct {
	// Factors is the number of latent factors to extract.
	Factors int `json:"factors"`

	// PromaxPower is the exponent of the promax target matrix.
	// Typical range: 2-4.
	PromaxPower float64 `json:"promax_power"`
}

// DefaultConfig returns the production fit configuration: 12 factors with
// the conventional promax power of 4.
func DefaultConfig() Config {
	return Config{
		Factors:     12,
		PromaxPower: 4,
	}
}

// Params holds the learned extractor parameters. Params are immutable once
// fitted; factor vectors produced under different Params values are not
// comparable.
type Params struct {
	Items   int `json:"items"`
	Factors int `json:"factors"`

	// Means and Stds standardize incoming responses. Constant items carry
	// a unit Std so they contribute nothing after centering.
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`

	// Loadings is the promax-rotated pattern matrix (Items x Factors),
	// kept for inspection and artifact diffing.
	Loadings [][]float64 `json:"loadings"`

	// Weights is the regression-method score weight matrix (Items x Factors)
	// applied to standardized responses.
	Weights [][]float64 `json:"weights"`
}

// Fit learns extractor parameters from a corpus of raw responses.
// The corpus must be rectangular and contain at least cfg.Factors rows.
func Fit(corpus [][]int, cfg Config) (*Params, error) {
	if cfg.Factors <= 0 {
		cfg.Factors = DefaultConfig().Factors
	}
	if cfg.PromaxPower <= 1 {
		cfg.PromaxPower = DefaultConfig().PromaxPower
	}

	n := len(corpus)
	if n < cfg.Factors {
		return nil, fmt.Errorf("%w: %d respondents for %d factors", ErrInsufficientCorpus, n, cfg.Factors)
	}
	items := len(corpus[0])
	for i, row := range corpus {
		if len(row) != items {
			return nil, fmt.Errorf("%w: row %d has %d items, want %d", ErrRaggedCorpus, i, len(row), items)
		}
	}
	if cfg.Factors > items {
		return nil, fmt.Errorf("%w: %d factors exceed %d items", ErrInsufficientCorpus, cfg.Factors, items)
	}

	means, stds := columnMoments(corpus, items)

	// Standardized data matrix.
	z := mat.NewDense(n, items, nil)
	for i, row := range corpus {
		for j, v := range row {
			z.Set(i, j, (float64(v)-means[j])/stds[j])
		}
	}

	corr := correlationMatrix(z)

	loadings, err := initialLoadings(corr, cfg.Factors)
	if err != nil {
		return nil, err
	}

	rotated := varimax(loadings)
	pattern, phi := promax(rotated, cfg.PromaxPower)
	stabilizeSigns(pattern)

	weights, err := regressionWeights(corr, pattern, phi)
	if err != nil {
		return nil, err
	}

	return &Params{
		Items:    items,
		Factors:  cfg.Factors,
		Means:    means,
		Stds:     stds,
		Loadings: denseToRows(pattern),
		Weights:  denseToRows(weights),
	}, nil
}

// Transform projects one raw response into factor space using fitted params.
// Returns ErrNotFitted on nil params and ErrDimensionMismatch when the
// response length differs from the fitted item count.
func Transform(p *Params, response []int) ([]float64, error) {
	if p == nil || len(p.Weights) == 0 {
		return nil, ErrNotFitted
	}
	if len(response) != p.Items {
		return nil, fmt.Errorf("%w: got %d items, want %d", ErrDimensionMismatch, len(response), p.Items)
	}

	out := make([]float64, p.Factors)
	for i, v := range response {
		zi := (float64(v) - p.Means[i]) / p.Stds[i]
		if zi == 0 {
			continue
		}
		row := p.Weights[i]
		for j := range out {
			out[j] += zi * row[j]
		}
	}
	return out, nil
}

// columnMoments computes per-item means and standard deviations. A constant
// column gets a unit deviation so standardization stays defined.
func columnMoments(corpus [][]int, items int) (means, stds []float64) {
	n := float64(len(corpus))
	means = make([]float64, items)
	stds = make([]float64, items)

	for _, row := range corpus {
		for j, v := range row {
			means[j] += float64(v)
		}
	}
	for j := range means {
		means[j] /= n
	}

	for _, row := range corpus {
		for j, v := range row {
			d := float64(v) - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		if n > 1 {
			stds[j] = math.Sqrt(stds[j] / (n - 1))
		}
		if stds[j] == 0 {
			stds[j] = 1
		}
	}
	return means, stds
}

// correlationMatrix computes the item correlation matrix from standardized
// data. Because the columns are already z-scored this is Z'Z/(n-1) with the
// diagonal pinned to exactly one.
func correlationMatrix(z *mat.Dense) *mat.SymDense {
	n, items := z.Dims()
	var prod mat.Dense
	prod.Mul(z.T(), z)

	corr := mat.NewSymDense(items, nil)
	scale := 1 / float64(n-1)
	for i := 0; i < items; i++ {
		for j := i; j < items; j++ {
			if i == j {
				corr.SetSym(i, j, 1)
				continue
			}
			corr.SetSym(i, j, prod.At(i, j)*scale)
		}
	}
	return corr
}

// initialLoadings extracts unrotated loadings from the top eigenpairs of
// the correlation matrix: column j is sqrt(eigenvalue_j) * eigenvector_j.
func initialLoadings(corr *mat.SymDense, factors int) (*mat.Dense, error) {
	items, _ := corr.Dims()

	var eig mat.EigenSym
	if !eig.Factorize(corr, true) {
		return nil, errors.New("factor: eigendecomposition failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// gonum returns eigenvalues in ascending order; take the top ones.
	loadings := mat.NewDense(items, factors, nil)
	for j := 0; j < factors; j++ {
		col := items - 1 - j
		scale := math.Sqrt(math.Max(values[col], 0))
		for i := 0; i < items; i++ {
			loadings.Set(i, j, vectors.At(i, col)*scale)
		}
	}
	return loadings, nil
}

// regressionWeights derives factor score weights: solve R * W = S where
// S = pattern * phi is the structure matrix. A small ridge keeps the solve
// stable when the correlation matrix is near-singular.
func regressionWeights(corr *mat.SymDense, pattern, phi *mat.Dense) (*mat.Dense, error) {
	items, _ := corr.Dims()

	var structure mat.Dense
	structure.Mul(pattern, phi)

	ridged := mat.NewDense(items, items, nil)
	for i := 0; i < items; i++ {
		for j := 0; j < items; j++ {
			v := corr.At(i, j)
			if i == j {
				v += 1e-8
			}
			ridged.Set(i, j, v)
		}
	}

	var weights mat.Dense
	if err := weights.Solve(ridged, &structure); err != nil {
		return nil, fmt.Errorf("factor: weight solve failed: %w", err)
	}
	return &weights, nil
}

// stabilizeSigns flips each factor column so its largest-magnitude loading
// is positive. Eigenvector signs are arbitrary; pinning them keeps refits
// on identical corpora bit-identical.
func stabilizeSigns(m *mat.Dense) {
	rows, cols := m.Dims()
	for j := 0; j < cols; j++ {
		maxAbs, sign := 0.0, 1.0
		for i := 0; i < rows; i++ {
			v := m.At(i, j)
			if math.Abs(v) > maxAbs {
				maxAbs = math.Abs(v)
				if v < 0 {
					sign = -1
				} else {
					sign = 1
				}
			}
		}
		if sign < 0 {
			for i := 0; i < rows; i++ {
				m.Set(i, j, -m.At(i, j))
			}
		}
	}
}

// denseToRows copies a dense matrix into a row-major [][]float64 for
// serialization.
func denseToRows(m *mat.Dense) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			row[j] = m.At(i, j)
		}
		out[i] = row
	}
	return out
}
