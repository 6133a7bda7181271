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
	"encoding/gob"
	"log"
	"os"

	"github.com/vqlab/varcal/utils"

	"gonum.org/v1/gonum/mat"
)

// A ClusterFile is the serialized form of a trained recalibration
// model: the fitted mixture parameters, the standardization
// statistics they are expressed in, and the priors. Together these
// determine every recalibrated quality, so a run can be audited or
// rescored from its cluster file alone.
type ClusterFile struct {
	Program string
	Version string
	RunID   string

	TargetTiTv         float64
	KnownPrior         int
	NovelPrior         int
	QualityScaleFactor float64

	AnnotationKeys []string
	Means          []float64
	StdDevs        []float64

	Weights      []float64
	ClusterMeans [][]float64
	Covariances  [][]float64 // per cluster, the full dim x dim matrix in row-major order

	AlleleCountCumulative []float64
}

// ClusterFile captures the trained model state. It panics when called
// before Train.
func (recal *Recalibrator) ClusterFile() *ClusterFile {
	if recal.gmm == nil {
		log.Panic("attempt to serialize a recalibration model before it is trained")
	}
	dim := recal.gmm.Dim
	cf := &ClusterFile{
		Program:            utils.ProgramName,
		Version:            utils.ProgramVersion,
		RunID:              recal.runID.String(),
		TargetTiTv:         recal.config.TargetTiTv,
		KnownPrior:         recal.config.KnownPrior,
		NovelPrior:         recal.config.NovelPrior,
		QualityScaleFactor: recal.config.QualityScaleFactor,
		AnnotationKeys:     recal.manager.AnnotationKeys,
		Means:              recal.manager.means,
		StdDevs:            recal.manager.stddevs,

		AlleleCountCumulative: recal.acPrior.Cumulative,
	}
	for _, cluster := range recal.gmm.Clusters {
		covariance := make([]float64, 0, dim*dim)
		for a := 0; a < dim; a++ {
			for b := 0; b < dim; b++ {
				covariance = append(covariance, cluster.Covariance.At(a, b))
			}
		}
		cf.Weights = append(cf.Weights, cluster.Weight)
		cf.ClusterMeans = append(cf.ClusterMeans, cluster.Mean)
		cf.Covariances = append(cf.Covariances, covariance)
	}
	return cf
}

// WriteClusterFile serializes the trained model state to a gob file.
func (recal *Recalibrator) WriteClusterFile(name string) (err error) {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := file.Close(); err == nil {
			err = nerr
		}
	}()
	return gob.NewEncoder(file).Encode(recal.ClusterFile())
}

// LoadClusterFile loads a serialized recalibration model from a gob
// file.
func LoadClusterFile(name string) (*ClusterFile, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()
	cf := &ClusterFile{}
	if err := gob.NewDecoder(file).Decode(cf); err != nil {
		return nil, err
	}
	return cf, nil
}

// MixtureModel reconstructs the fitted Gaussian mixture from its
// serialized parameters.
func (cf *ClusterFile) MixtureModel() *GaussianMixtureModel {
	dim := len(cf.AnnotationKeys)
	gmm := &GaussianMixtureModel{Dim: dim}
	for k, weight := range cf.Weights {
		gmm.Clusters = append(gmm.Clusters, GaussianCluster{
			Weight:     weight,
			Mean:       cf.ClusterMeans[k],
			Covariance: mat.NewSymDense(dim, cf.Covariances[k]),
		})
	}
	gmm.prepare()
	return gmm
}

// DataManager reconstructs a finalized data manager holding the
// serialized standardization statistics. It carries no population
// data; it exists to standardize new annotation vectors against the
// statistics of the original run.
func (cf *ClusterFile) DataManager() *VariantDataManager {
	dm := NewVariantDataManager(cf.AnnotationKeys)
	dm.means = cf.Means
	dm.stddevs = cf.StdDevs
	dm.finalized = true
	return dm
}

// Prior reconstructs the allele count prior of the original run.
func (cf *ClusterFile) Prior() *AlleleCountPrior {
	return &AlleleCountPrior{Cumulative: cf.AlleleCountCumulative}
}
