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
	"testing"
)

func TestPhredScale(t *testing.T) {
	if PhredScale(1) != 0 {
		t.Error("PhredScale 1 failed")
	}
	if math.Abs(PhredScale(0.1)-10) > 1e-12 {
		t.Error("PhredScale 2 failed")
	}
	if math.Abs(PhredScale(0.001)-30) > 1e-12 {
		t.Error("PhredScale 3 failed")
	}
	previous := PhredScale(1e-9)
	for _, p := range []float64{1e-6, 1e-3, 0.1, 0.5, 0.9, 1} {
		current := PhredScale(p)
		if current >= previous {
			t.Error("PhredScale monotonicity failed")
		}
		previous = current
	}
}

func TestQualToProb(t *testing.T) {
	if QualToProb(0) != 0 {
		t.Error("QualToProb 1 failed")
	}
	if math.Abs(QualToProb(10)-0.9) > 1e-12 {
		t.Error("QualToProb 2 failed")
	}
	if math.Abs(QualToProb(20)-0.99) > 1e-12 {
		t.Error("QualToProb 3 failed")
	}
	if QualToProb(9) <= QualToProb(2) {
		t.Error("QualToProb ordering failed")
	}
	if math.Abs(QualToProb(30)+QualToErrorProb(30)-1) > 1e-12 {
		t.Error("QualToProb complement failed")
	}
}

func TestAlleleCountPrior(t *testing.T) {
	prior := FitAlleleCountPrior([]int{1, 1, 1, 2, 2, 4})
	previous := 0.0
	for count := 1; count <= 4; count++ {
		p := prior.Prob(count)
		if p <= 0 || p > 1 {
			t.Error("AlleleCountPrior range failed")
		}
		if p < previous {
			t.Error("AlleleCountPrior monotonicity failed")
		}
		previous = p
	}
	if prior.Prob(4) != 1 {
		t.Error("AlleleCountPrior saturation failed")
	}
	if prior.Prob(100) != 1 {
		t.Error("AlleleCountPrior tail failed")
	}
	// unseen intermediate counts still get smoothed mass
	if prior.Prob(3) <= prior.Prob(2) {
		t.Error("AlleleCountPrior smoothing failed")
	}
	if prior.Prob(0) != prior.Prob(1) {
		t.Error("AlleleCountPrior clamp failed")
	}
}
