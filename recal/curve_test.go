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
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vqlab/varcal/vcf"
)

func trainedRecalibrator(t *testing.T, n int) (*Recalibrator, *vcf.Vcf) {
	v := testVcf(n)
	known := testKnown(v)
	recal, err := NewRecalibrator(testConfig(), known)
	if err != nil {
		t.Error("trained recalibrator setup failed")
		return nil, nil
	}
	if err := recal.Collect(v); err != nil {
		t.Error("trained recalibrator collect failed")
		return nil, nil
	}
	if err := recal.Train(); err != nil {
		t.Error("trained recalibrator train failed")
		return nil, nil
	}
	recal.Score(v)
	return recal, v
}

func TestOptimizationCurve(t *testing.T) {
	recal, _ := trainedRecalibrator(t, 60)
	if recal == nil {
		return
	}
	points := recal.OptimizationCurve()
	if len(points) == 0 {
		t.Error("OptimizationCurve empty failed")
		return
	}
	for i, point := range points {
		if point.Retained < 1 || point.KnownFraction < 0 || point.KnownFraction > 1 {
			t.Error("OptimizationCurve range failed")
		}
		if point.TiTv < 0 {
			t.Error("OptimizationCurve titv failed")
		}
		if i > 0 {
			if point.Threshold >= points[i-1].Threshold {
				t.Error("OptimizationCurve threshold order failed")
			}
			if point.Retained <= points[i-1].Retained {
				t.Error("OptimizationCurve retained monotonicity failed")
			}
		}
	}
	if points[len(points)-1].Retained != 60 {
		t.Error("OptimizationCurve population failed")
	}
}

func TestSelectCurvePoint(t *testing.T) {
	recal, _ := trainedRecalibrator(t, 60)
	if recal == nil {
		return
	}
	points := recal.OptimizationCurve()
	selected := SelectCurvePoint(points, 1)
	if selected.Retained != points[0].Retained {
		t.Error("SelectCurvePoint low failed")
	}
	// a desired count at or above the population selects the minimum
	// observed threshold
	selected = SelectCurvePoint(points, 1000)
	if selected.Threshold != points[len(points)-1].Threshold {
		t.Error("SelectCurvePoint high failed")
	}
	if selected.Retained != 60 {
		t.Error("SelectCurvePoint population failed")
	}
}

func TestWriteOptimizationCurve(t *testing.T) {
	recal, _ := trainedRecalibrator(t, 60)
	if recal == nil {
		return
	}
	name := filepath.Join(t.TempDir(), "optimizer.dat")
	if recal.WriteOptimizationCurve(name) != nil {
		t.Error("WriteOptimizationCurve failed")
		return
	}
	contents, err := ioutil.ReadFile(name)
	if err != nil {
		t.Error("WriteOptimizationCurve read back failed")
		return
	}
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	if len(lines) < 4 {
		t.Error("WriteOptimizationCurve length failed")
		return
	}
	if !strings.HasPrefix(lines[0], "# varcal optimization curve") {
		t.Error("WriteOptimizationCurve header failed")
	}
	if !strings.Contains(lines[1], "2.10") {
		t.Error("WriteOptimizationCurve target titv failed")
	}
	if !strings.Contains(lines[2], "Threshold") || !strings.Contains(lines[2], "TiTv") {
		t.Error("WriteOptimizationCurve column header failed")
	}
	if len(lines) != 3+len(recal.OptimizationCurve()) {
		t.Error("WriteOptimizationCurve row count failed")
	}
}
