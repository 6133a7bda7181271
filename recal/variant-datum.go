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

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/stat"
)

// A VariantDatum is the per-call feature record the recalibration
// model operates on. One datum is created per qualifying variant call
// during the collection phase; it is read-only after Qual has been
// set by the scoring phase.
type VariantDatum struct {
	Annotations  []float64 // raw annotation values, NaN where missing
	IsKnown      bool
	IsTransition bool
	AlleleCount  int // >= 1
	QualRaw      float64
	Qual         float64

	variantIndex int // position of the originating call in the input
}

// A VariantDataManager accumulates the VariantDatum population of one
// full pass over the input calls, and computes the per-annotation
// mean and standard deviation that standardize every vector the model
// is trained on or evaluated against. Training and evaluation happen
// in the same standardized space; that is what makes the fitted
// density comparable across calls.
type VariantDataManager struct {
	AnnotationKeys []string
	Data           []VariantDatum

	// trainable marks the data usable for training: datums with a
	// missing annotation are kept in the population for pass-through,
	// but excluded from standardization and model fitting.
	trainable *bitset.BitSet

	means, stddevs []float64
	finalized      bool
}

// NewVariantDataManager creates an empty manager for the given
// annotation names. The name set is fixed for the lifetime of a run.
func NewVariantDataManager(annotationKeys []string) *VariantDataManager {
	return &VariantDataManager{
		AnnotationKeys: annotationKeys,
		trainable:      bitset.New(0),
	}
}

func complete(annotations []float64) bool {
	for _, value := range annotations {
		if math.IsNaN(value) {
			return false
		}
	}
	return true
}

// AddDatum appends a datum in arrival order. A datum whose annotation
// vector disagrees with the configured annotation names is a fatal
// configuration error.
func (dm *VariantDataManager) AddDatum(datum VariantDatum) {
	if dm.finalized {
		log.Panic("AddDatum called after Finalize")
	}
	if len(datum.Annotations) != len(dm.AnnotationKeys) {
		log.Panicf("variant datum with %v annotations disagrees with the configured annotation set %v", len(datum.Annotations), dm.AnnotationKeys)
	}
	if complete(datum.Annotations) {
		dm.trainable.Set(uint(len(dm.Data)))
	}
	dm.Data = append(dm.Data, datum)
}

// Trainable reports whether the datum at the given index has a
// complete annotation vector.
func (dm *VariantDataManager) Trainable(index int) bool {
	return dm.trainable.Test(uint(index))
}

// Finalize computes the per-annotation mean and standard deviation
// over the trainable data. It is idempotent: a second call does not
// recompute the statistics. Finalizing an empty population is an
// error, since the standard deviation of an empty set is undefined.
func (dm *VariantDataManager) Finalize() error {
	if dm.finalized {
		return nil
	}
	count := dm.trainable.Count()
	if count == 0 {
		return fmt.Errorf("no variant data with complete annotations %v collected; cannot compute population statistics", dm.AnnotationKeys)
	}
	if excluded := len(dm.Data) - int(count); excluded > 0 {
		log.Printf("Warning: %v of %v variants are missing one or more of the annotations %v and are excluded from training and scoring.", excluded, len(dm.Data), dm.AnnotationKeys)
	}
	dm.means = make([]float64, len(dm.AnnotationKeys))
	dm.stddevs = make([]float64, len(dm.AnnotationKeys))
	column := make([]float64, 0, count)
	for j := range dm.AnnotationKeys {
		column = column[:0]
		for i := range dm.Data {
			if dm.Trainable(i) {
				column = append(column, dm.Data[i].Annotations[j])
			}
		}
		mean, stddev := stat.MeanStdDev(column, nil)
		if stddev == 0 || math.IsNaN(stddev) {
			// a constant annotation passes through unscaled
			stddev = 1
		}
		dm.means[j] = mean
		dm.stddevs[j] = stddev
	}
	dm.finalized = true
	return nil
}

// Standardize maps an annotation vector into the standardized space
// the model is trained in. It must not be called before Finalize.
func (dm *VariantDataManager) Standardize(annotations []float64) []float64 {
	if !dm.finalized {
		log.Panic("Standardize called before Finalize")
	}
	standardized := make([]float64, len(annotations))
	for j, value := range annotations {
		standardized[j] = (value - dm.means[j]) / dm.stddevs[j]
	}
	return standardized
}

// TrainingData returns the standardized annotation vectors of all
// trainable data, in arrival order.
func (dm *VariantDataManager) TrainingData() [][]float64 {
	training := make([][]float64, 0, dm.trainable.Count())
	for i := range dm.Data {
		if dm.Trainable(i) {
			training = append(training, dm.Standardize(dm.Data[i].Annotations))
		}
	}
	return training
}
