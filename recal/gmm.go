// varcal: variant quality score recalibration for VCF files.
// Copyright (c) 2020-2021 the varcal authors.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License along with this program. If not, see
// <https://github.com/vqlab/varcal/blob/master/LICENSE.txt>.

package recal

import (
	"fmt"
	"log"
	"math"

	"github.com/exascience/pargo/parallel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/vqlab/varcal/internal"
)

// Model is an enumeration type for the available recalibration model
// implementations.
type Model uint

// The available recalibration models. Only the Gaussian mixture model
// is implemented; the enumeration leaves room for alternatives
// without touching the scoring phase.
const (
	InvalidModel Model = iota
	GaussianMixture
)

// ParseModel parses a recalibration model name.
func ParseModel(name string) (Model, error) {
	switch name {
	case "GAUSSIAN_MIXTURE_MODEL":
		return GaussianMixture, nil
	default:
		return InvalidModel, fmt.Errorf("unrecognized recalibration model %v; the implemented option is GAUSSIAN_MIXTURE_MODEL", name)
	}
}

// An EMConfig bundles the training parameters for fitting a Gaussian
// mixture by expectation-maximization.
type EMConfig struct {
	Clusters      int     // the number of mixture components
	BackoffFactor float64 // covariance inflation factor, >= 1
	Tolerance     float64 // minimum log-likelihood improvement between iterations
	MaxIterations int
	Seed          int64
}

type (
	// A GaussianCluster is one component of a fitted Gaussian
	// mixture.
	GaussianCluster struct {
		Weight     float64
		Mean       []float64
		Covariance *mat.SymDense

		logWeight float64
		normal    *distmv.Normal
	}

	// A GaussianMixtureModel is a mixture of multivariate Gaussian
	// densities over standardized annotation vectors. All parameters
	// are fitted by FitGaussianMixture, never set by hand.
	GaussianMixtureModel struct {
		Dim      int
		Clusters []GaussianCluster
	}
)

// Densities below minDensity are clamped to minDensity, so that
// taking their logarithm is always defined.
const minDensity = 1e-300

// covarianceJitter is the initial diagonal term added to a covariance
// matrix that is not positive definite.
const covarianceJitter = 1e-6

func sqDistance(x, y []float64) (d float64) {
	for i, v := range x {
		diff := v - y[i]
		d += diff * diff
	}
	return d
}

// populationCovariance computes the sample covariance matrix of the
// given vectors.
func populationCovariance(data [][]float64, dim int) *mat.SymDense {
	means := make([]float64, dim)
	for _, x := range data {
		for i, v := range x {
			means[i] += v
		}
	}
	for i := range means {
		means[i] /= float64(len(data))
	}
	cov := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			var sum float64
			for _, x := range data {
				sum += (x[i] - means[i]) * (x[j] - means[j])
			}
			cov.SetSym(i, j, sum/float64(len(data)-1))
		}
	}
	return cov
}

// seedMeans chooses the initial cluster means with k-means++-style
// seeding: the first mean is a uniformly chosen training vector, and
// every next mean is a training vector chosen with probability
// proportional to its squared distance from the nearest mean chosen
// so far. The choice is fully determined by the seed of rng.
func seedMeans(data [][]float64, clusters int, rng *internal.Rand) [][]float64 {
	means := make([][]float64, 0, clusters)
	means = append(means, append([]float64(nil), data[rng.Intn(len(data))]...))
	distances := make([]float64, len(data))
	for len(means) < clusters {
		var total float64
		for i, x := range data {
			nearest := math.Inf(1)
			for _, mean := range means {
				if d := sqDistance(x, mean); d < nearest {
					nearest = d
				}
			}
			distances[i] = nearest
			total += nearest
		}
		index := rng.Intn(len(data))
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range distances {
				if target -= d; target <= 0 {
					index = i
					break
				}
			}
		}
		means = append(means, append([]float64(nil), data[index]...))
	}
	return means
}

// prepare builds the cached per-cluster normal distributions from the
// fitted parameters, adding a diagonal jitter term to covariance
// matrices that fail the Cholesky factorization.
func (gmm *GaussianMixtureModel) prepare() {
	for k := range gmm.Clusters {
		cluster := &gmm.Clusters[k]
		cluster.logWeight = math.Log(math.Max(cluster.Weight, minDensity))
		normal, ok := distmv.NewNormal(cluster.Mean, cluster.Covariance, nil)
		for jitter := covarianceJitter; !ok; jitter *= 10 {
			for i := 0; i < gmm.Dim; i++ {
				cluster.Covariance.SetSym(i, i, cluster.Covariance.At(i, i)+jitter)
			}
			normal, ok = distmv.NewNormal(cluster.Mean, cluster.Covariance, nil)
		}
		cluster.normal = normal
	}
}

// logDensities fills logs with the per-cluster log of weight times
// Gaussian density at x, and returns their log-sum-exp, which is the
// log of the mixture density at x.
func (gmm *GaussianMixtureModel) logDensities(x []float64, logs []float64) float64 {
	for k := range gmm.Clusters {
		cluster := &gmm.Clusters[k]
		logs[k] = cluster.logWeight + cluster.normal.LogProb(x)
	}
	return floats.LogSumExp(logs)
}

// Density evaluates the mixture density at the given standardized
// annotation vector. It is a pure function of the fitted model state
// and its input, and always returns a value of at least minDensity.
func (gmm *GaussianMixtureModel) Density(x []float64) float64 {
	if len(x) != gmm.Dim {
		log.Panicf("annotation vector of dimension %v evaluated against a model of dimension %v", len(x), gmm.Dim)
	}
	logs := make([]float64, len(gmm.Clusters))
	density := math.Exp(gmm.logDensities(x, logs))
	if density < minDensity {
		return minDensity
	}
	return density
}

// FitGaussianMixture fits a mixture of config.Clusters multivariate
// Gaussians to the given standardized training vectors using
// expectation-maximization. After every maximization step, each
// covariance matrix is inflated by config.BackoffFactor to keep
// clusters from collapsing onto a small subset of the training data.
func FitGaussianMixture(data [][]float64, config EMConfig) (*GaussianMixtureModel, error) {
	n := len(data)
	if n < 2 {
		return nil, fmt.Errorf("%v training vectors is too few to estimate a covariance matrix", n)
	}
	if n < config.Clusters {
		return nil, fmt.Errorf("%v training vectors is fewer than the %v requested clusters", n, config.Clusters)
	}
	if config.Clusters < 1 {
		return nil, fmt.Errorf("invalid number of clusters %v", config.Clusters)
	}
	if config.BackoffFactor < 1 {
		return nil, fmt.Errorf("invalid backoff factor %v; must be >= 1.0", config.BackoffFactor)
	}
	dim := len(data[0])
	for _, x := range data {
		if len(x) != dim {
			return nil, fmt.Errorf("training vector of dimension %v disagrees with the configured annotation count %v", len(x), dim)
		}
	}

	rng := internal.NewRand(config.Seed)
	means := seedMeans(data, config.Clusters, rng)
	cov := populationCovariance(data, dim)
	gmm := &GaussianMixtureModel{Dim: dim, Clusters: make([]GaussianCluster, config.Clusters)}
	for k := range gmm.Clusters {
		covCopy := mat.NewSymDense(dim, nil)
		covCopy.CopySym(cov)
		gmm.Clusters[k] = GaussianCluster{
			Weight:     1 / float64(config.Clusters),
			Mean:       means[k],
			Covariance: covCopy,
		}
	}
	gmm.prepare()

	responsibilities := make([][]float64, n)
	for i := range responsibilities {
		responsibilities[i] = make([]float64, config.Clusters)
	}

	prevLogLikelihood := math.Inf(-1)
	for iteration := 1; ; iteration++ {
		// E-step
		logLikelihood := parallel.RangeReduceFloat64(0, n, 0, func(low, high int) (sum float64) {
			for i := low; i < high; i++ {
				logs := responsibilities[i]
				total := gmm.logDensities(data[i], logs)
				for k, l := range logs {
					logs[k] = math.Exp(l - total)
				}
				sum += total
			}
			return sum
		}, func(x, y float64) float64 { return x + y })

		if logLikelihood-prevLogLikelihood < config.Tolerance {
			log.Printf("EM converged after %v iterations (log-likelihood %v)", iteration, logLikelihood)
			break
		}
		if iteration > config.MaxIterations {
			log.Printf("EM stopped after reaching the maximum of %v iterations (log-likelihood %v)", config.MaxIterations, logLikelihood)
			break
		}
		prevLogLikelihood = logLikelihood

		// M-step
		for k := range gmm.Clusters {
			cluster := &gmm.Clusters[k]
			var nk float64
			mean := make([]float64, dim)
			for i, x := range data {
				r := responsibilities[i][k]
				nk += r
				for j, v := range x {
					mean[j] += r * v
				}
			}
			if nk < minDensity {
				nk = minDensity
			}
			for j := range mean {
				mean[j] /= nk
			}
			for a := 0; a < dim; a++ {
				for b := a; b < dim; b++ {
					var sum float64
					for i, x := range data {
						sum += responsibilities[i][k] * (x[a] - mean[a]) * (x[b] - mean[b])
					}
					// backoff regularization, applied every iteration
					cluster.Covariance.SetSym(a, b, config.BackoffFactor*sum/nk)
				}
			}
			cluster.Weight = nk / float64(n)
			cluster.Mean = mean
		}
		gmm.prepare()
	}
	return gmm, nil
}
