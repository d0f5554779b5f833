// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package factor

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	varimaxMaxIter = 100
	varimaxTol     = 1e-6
)

// varimax applies the orthogonal varimax rotation with Kaiser row
// normalization, using the SVD-based update. The input is not modified.
func varimax(loadings *mat.Dense) *mat.Dense {
	items, factors := loadings.Dims()

	// Kaiser normalization: scale rows to unit communality before rotating,
	// restore afterwards.
	comm := make([]float64, items)
	normed := mat.NewDense(items, factors, nil)
	for i := 0; i < items; i++ {
		var ss float64
		for j := 0; j < factors; j++ {
			v := loadings.At(i, j)
			ss += v * v
		}
		comm[i] = math.Sqrt(ss)
		scale := 1.0
		if comm[i] > 0 {
			scale = 1 / comm[i]
		}
		for j := 0; j < factors; j++ {
			normed.Set(i, j, loadings.At(i, j)*scale)
		}
	}

	rotation := eye(factors)
	rotated := mat.NewDense(items, factors, nil)
	rotated.Copy(normed)

	prev := 0.0
	for iter := 0; iter < varimaxMaxIter; iter++ {
		rotated.Mul(normed, rotation)

		// B = L' * (R^3 - R * diag(colSumSq(R))/items)
		cubed := mat.NewDense(items, factors, nil)
		colSS := make([]float64, factors)
		for i := 0; i < items; i++ {
			for j := 0; j < factors; j++ {
				v := rotated.At(i, j)
				cubed.Set(i, j, v*v*v)
				colSS[j] += v * v
			}
		}
		target := mat.NewDense(items, factors, nil)
		for i := 0; i < items; i++ {
			for j := 0; j < factors; j++ {
				target.Set(i, j, cubed.At(i, j)-rotated.At(i, j)*colSS[j]/float64(items))
			}
		}

		var b mat.Dense
		b.Mul(normed.T(), target)

		var svd mat.SVD
		if !svd.Factorize(&b, mat.SVDThin) {
			break
		}
		var u, v mat.Dense
		svd.UTo(&u)
		svd.VTo(&v)
		rotation.Mul(&u, v.T())

		var objective float64
		for _, s := range svd.Values(nil) {
			objective += s
		}
		if objective < prev*(1+varimaxTol) {
			break
		}
		prev = objective
	}

	rotated.Mul(normed, rotation)
	for i := 0; i < items; i++ {
		for j := 0; j < factors; j++ {
			rotated.Set(i, j, rotated.At(i, j)*comm[i])
		}
	}
	return rotated
}

// promax applies the oblique promax transform to varimax-rotated loadings.
// Returns the pattern matrix and the factor correlation matrix phi.
//
// The target is the varimax solution raised elementwise to the given power
// with signs preserved; the transform T is the least-squares map onto that
// target, column-normalized so that diag(inv(T'T)) is one.
func promax(rotated *mat.Dense, power float64) (pattern, phi *mat.Dense) {
	items, factors := rotated.Dims()

	target := mat.NewDense(items, factors, nil)
	for i := 0; i < items; i++ {
		for j := 0; j < factors; j++ {
			v := rotated.At(i, j)
			target.Set(i, j, math.Copysign(math.Pow(math.Abs(v), power), v))
		}
	}

	// T = (L'L)^-1 L' P, via least squares.
	var transform mat.Dense
	if err := transform.Solve(rotated, target); err != nil {
		// A degenerate varimax solution leaves nothing to obliquify.
		pattern = mat.DenseCopyOf(rotated)
		return pattern, eye(factors)
	}

	// Normalize columns of T so diag(inv(T'T)) = 1.
	var gram mat.Dense
	gram.Mul(transform.T(), &transform)
	var gramInv mat.Dense
	if err := gramInv.Inverse(&gram); err != nil {
		pattern = mat.DenseCopyOf(rotated)
		return pattern, eye(factors)
	}
	for j := 0; j < factors; j++ {
		scale := math.Sqrt(gramInv.At(j, j))
		for i := 0; i < factors; i++ {
			transform.Set(i, j, transform.At(i, j)*scale)
		}
	}

	pattern = mat.NewDense(items, factors, nil)
	pattern.Mul(rotated, &transform)

	// phi = inv(T'T) of the normalized transform.
	gram.Mul(transform.T(), &transform)
	phi = mat.NewDense(factors, factors, nil)
	if err := phi.Inverse(&gram); err != nil {
		phi = eye(factors)
	}
	return pattern, phi
}

// eye returns the k x k identity matrix.
func eye(k int) *mat.Dense {
	m := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		m.Set(i, i, 1)
	}
	return m
}
