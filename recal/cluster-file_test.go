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
	"path/filepath"
	"testing"

	"github.com/vqlab/varcal/utils"
)

func TestClusterFileRoundTrip(t *testing.T) {
	recal, _ := trainedRecalibrator(t, 60)
	if recal == nil {
		return
	}
	name := filepath.Join(t.TempDir(), "model.cluster")
	if recal.WriteClusterFile(name) != nil {
		t.Error("WriteClusterFile failed")
		return
	}
	cf, err := LoadClusterFile(name)
	if err != nil {
		t.Error("LoadClusterFile failed")
		return
	}
	if cf.Program != utils.ProgramName || cf.Version != utils.ProgramVersion {
		t.Error("ClusterFile program info failed")
	}
	if cf.RunID != recal.RunID().String() {
		t.Error("ClusterFile run id failed")
	}
	if cf.TargetTiTv != 2.1 || cf.KnownPrior != 9 || cf.NovelPrior != 2 || cf.QualityScaleFactor != 50.0 {
		t.Error("ClusterFile configuration failed")
	}
	if len(cf.AnnotationKeys) != 2 || cf.AnnotationKeys[0] != "QD" || cf.AnnotationKeys[1] != "HS" {
		t.Error("ClusterFile annotation keys failed")
	}

	probe := []float64{10.5, 1.5}
	dm := cf.DataManager()
	standardized := dm.Standardize(probe)
	expected := recal.manager.Standardize(probe)
	for j := range standardized {
		if standardized[j] != expected[j] {
			t.Error("ClusterFile standardization failed")
		}
	}

	gmm := cf.MixtureModel()
	if math.Abs(gmm.Density(standardized)-recal.gmm.Density(expected)) > 1e-12 {
		t.Error("ClusterFile density failed")
	}

	prior := cf.Prior()
	for count := 1; count <= 4; count++ {
		if prior.Prob(count) != recal.acPrior.Prob(count) {
			t.Error("ClusterFile allele count prior failed")
		}
	}
}
