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
	"math"
)

// QualToProb converts a phred-scaled quality to the probability that
// the call is true: 1 - 10^(-phred/10).
func QualToProb(phred float64) float64 {
	return 1 - math.Pow(10, phred/-10)
}

// QualToErrorProb converts a phred-scaled quality to the probability
// that the call is an error: 10^(-phred/10).
func QualToErrorProb(phred float64) float64 {
	return math.Pow(10, phred/-10)
}

// PhredScale converts an error probability to a phred-scaled quality:
// -10*log10(p).
func PhredScale(p float64) float64 {
	return -10 * math.Log10(p)
}

// An AlleleCountPrior is the empirical prior probability that a call
// with a given alternate allele count is real. Calls observed on very
// few chromosome copies are more often artifacts, so the prior is
// monotone non-decreasing in the allele count. It is derived from the
// allele-count distribution of the collected population as a smoothed
// cumulative fraction, with add-one smoothing so that every count up
// to the observed maximum has nonzero mass; counts beyond the
// observed maximum saturate at 1.
type AlleleCountPrior struct {
	Cumulative []float64 // Cumulative[c] is the prior for allele count c+1
}

// FitAlleleCountPrior derives the allele-count prior from the
// collected population. The counts slice must be non-empty and all
// counts must be >= 1.
func FitAlleleCountPrior(counts []int) *AlleleCountPrior {
	maxCount := 1
	for _, count := range counts {
		if count > maxCount {
			maxCount = count
		}
	}
	histogram := make([]float64, maxCount)
	for _, count := range counts {
		histogram[count-1]++
	}
	total := float64(len(counts) + maxCount)
	cumulative := make([]float64, maxCount)
	var sum float64
	for c, observations := range histogram {
		sum += observations + 1
		cumulative[c] = sum / total
	}
	return &AlleleCountPrior{Cumulative: cumulative}
}

// Prob returns the prior probability for the given allele count. It
// is defined for every count >= 1; counts beyond the observed maximum
// fall through to the saturated tail.
func (prior *AlleleCountPrior) Prob(count int) float64 {
	if count < 1 {
		count = 1
	}
	if count > len(prior.Cumulative) {
		return 1
	}
	return prior.Cumulative[count-1]
}
