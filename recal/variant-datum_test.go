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

func TestFinalizeEmpty(t *testing.T) {
	dm := NewVariantDataManager([]string{"QD", "SB"})
	if dm.Finalize() == nil {
		t.Error("Finalize empty failed")
	}
	dm.AddDatum(VariantDatum{Annotations: []float64{1, math.NaN()}, AlleleCount: 1})
	if dm.Finalize() == nil {
		t.Error("Finalize incomplete-only failed")
	}
}

func TestFinalizeIdempotence(t *testing.T) {
	dm := NewVariantDataManager([]string{"QD"})
	dm.AddDatum(VariantDatum{Annotations: []float64{1}, AlleleCount: 1})
	dm.AddDatum(VariantDatum{Annotations: []float64{3}, AlleleCount: 1})
	if dm.Finalize() != nil {
		t.Error("Finalize failed")
	}
	standardized := dm.Standardize([]float64{1})
	if dm.Finalize() != nil {
		t.Error("Finalize second call failed")
	}
	if dm.Standardize([]float64{1})[0] != standardized[0] {
		t.Error("Finalize idempotence failed")
	}
}

func TestStandardize(t *testing.T) {
	dm := NewVariantDataManager([]string{"QD", "HS"})
	dm.AddDatum(VariantDatum{Annotations: []float64{1, 7}, AlleleCount: 1})
	dm.AddDatum(VariantDatum{Annotations: []float64{3, 7}, AlleleCount: 1})
	if dm.Finalize() != nil {
		t.Error("Standardize finalize failed")
	}
	standardized := dm.Standardize([]float64{2, 7})
	if standardized[0] != 0 {
		t.Error("Standardize mean failed")
	}
	// constant annotation: stddev clamped to 1, values pass through
	// centered but unscaled
	if standardized[1] != 0 {
		t.Error("Standardize constant column failed")
	}
	if dm.Standardize([]float64{3, 8})[1] != 1 {
		t.Error("Standardize constant column scale failed")
	}
	training := dm.TrainingData()
	if len(training) != 2 {
		t.Error("TrainingData length failed")
	}
	if training[0][0] >= training[1][0] {
		t.Error("TrainingData order failed")
	}
}

func TestTrainableMask(t *testing.T) {
	dm := NewVariantDataManager([]string{"QD"})
	dm.AddDatum(VariantDatum{Annotations: []float64{1}, AlleleCount: 1})
	dm.AddDatum(VariantDatum{Annotations: []float64{math.NaN()}, AlleleCount: 1})
	dm.AddDatum(VariantDatum{Annotations: []float64{2}, AlleleCount: 1})
	if !dm.Trainable(0) || dm.Trainable(1) || !dm.Trainable(2) {
		t.Error("Trainable mask failed")
	}
	if dm.Finalize() != nil {
		t.Error("Trainable finalize failed")
	}
	if len(dm.TrainingData()) != 2 {
		t.Error("Trainable training data failed")
	}
}
