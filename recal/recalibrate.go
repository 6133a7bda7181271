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

// Package recal implements variant quality score recalibration: a
// Gaussian mixture model over per-call annotation vectors, combined
// with an allele-count prior and a known/novel site prior, reassigns
// each single-nucleotide variant call a phred-scaled quality that
// reflects the probability that the call is real.
package recal

import (
	"fmt"
	"log"
	"math"

	"github.com/exascience/pargo/parallel"
	"github.com/google/uuid"

	"github.com/vqlab/varcal/sites"
	"github.com/vqlab/varcal/utils"
	"github.com/vqlab/varcal/vcf"
)

// OQ is the INFO key under which the original quality of a
// recalibrated call is preserved.
var OQ = utils.Intern("OQ")

const oqInfoLine = `##INFO=<ID=OQ,Number=1,Type=Float,Description="The original variant quality score">`

// minErrorRate floors the error probability before phred conversion,
// so that a posterior of (numerically) 1 does not produce log(0).
const minErrorRate = 1e-9

// A Config bundles the recalibration options.
type Config struct {
	TargetTiTv         float64 // expected Ti/Tv ratio, recorded in the optimization curve output
	BackoffFactor      float64 // covariance inflation factor, >= 1
	DesiredNumVariants int     // if > 0, report only the curve row closest to this retained count
	IgnoreAllFilters   bool
	IgnoreFilters      map[utils.Symbol]bool
	KnownPrior         int // phred-scaled prior on the quality of known variants
	NovelPrior         int // phred-scaled prior on the quality of novel variants
	QualityScaleFactor float64
	AnnotationKeys     []string
	Clusters           int
	Tolerance          float64
	MaxIterations      int
	Seed               int64
	Model              Model
}

// A Recalibrator scores variant calls against a model trained on the
// complete collected population. The two phases are explicit:
// Collect gathers the population, Train fits the model once, and
// Score assigns the recalibrated qualities. Models are never
// retrained mid-scoring.
type Recalibrator struct {
	config Config
	known  sites.Sites
	runID  uuid.UUID

	manager *VariantDataManager
	gmm     *GaussianMixtureModel
	acPrior *AlleleCountPrior

	knownSitePrior float64
	novelSitePrior float64
}

// NewRecalibrator creates a Recalibrator for the given configuration
// and known-sites track. An unsupported model choice is a
// configuration error.
func NewRecalibrator(config Config, known sites.Sites) (*Recalibrator, error) {
	if config.Model != GaussianMixture {
		return nil, fmt.Errorf("unsupported recalibration model %v", config.Model)
	}
	if len(config.AnnotationKeys) == 0 {
		return nil, fmt.Errorf("no annotations configured for recalibration")
	}
	if known == nil {
		return nil, fmt.Errorf("a known-sites track is required; the model is critically dependent on distinguishing known and novel sites")
	}
	return &Recalibrator{
		config:         config,
		known:          known,
		runID:          uuid.New(),
		manager:        NewVariantDataManager(config.AnnotationKeys),
		knownSitePrior: QualToProb(float64(config.KnownPrior)),
		novelSitePrior: QualToProb(float64(config.NovelPrior)),
	}, nil
}

// RunID returns the unique identifier of this recalibration run.
func (recal *Recalibrator) RunID() uuid.UUID {
	return recal.runID
}

var purine = map[byte]bool{'A': true, 'a': true, 'G': true, 'g': true}

// isTransition classifies a single-nucleotide substitution: a
// transition swaps a purine for a purine or a pyrimidine for a
// pyrimidine.
func isTransition(ref, alt string) bool {
	return purine[ref[0]] == purine[alt[0]]
}

// alleleCount counts the non-reference chromosome copies across the
// genotypes of a call.
func alleleCount(variant *vcf.Variant) (count int) {
	for _, genotype := range variant.Genotypes {
		for _, allele := range genotype.GT {
			if allele > 0 {
				count++
			}
		}
	}
	return count
}

// eligible determines whether a call takes part in recalibration.
// Calls that are not single-nucleotide substitutions, and filtered
// calls unless the filters are configured to be ignored, pass through
// with their quality unchanged.
func (recal *Recalibrator) eligible(variant *vcf.Variant) bool {
	if !variant.IsSNP() {
		return false
	}
	if !variant.Filtered() || recal.config.IgnoreAllFilters {
		return true
	}
	if len(recal.config.IgnoreFilters) == 0 {
		return false
	}
	for _, filter := range variant.Filter {
		if !recal.config.IgnoreFilters[filter] {
			return false
		}
	}
	return true
}

func (recal *Recalibrator) annotations(variant *vcf.Variant) []float64 {
	annotations := make([]float64, len(recal.config.AnnotationKeys))
	for j, key := range recal.config.AnnotationKeys {
		value, ok := variant.Info.Get(utils.Intern(key))
		if !ok {
			annotations[j] = math.NaN()
			continue
		}
		switch v := value.(type) {
		case int:
			annotations[j] = float64(v)
		case float64:
			annotations[j] = v
		default:
			annotations[j] = math.NaN()
		}
	}
	return annotations
}

func (recal *Recalibrator) makeDatum(variant *vcf.Variant, index int) (VariantDatum, bool, error) {
	if len(variant.Genotypes) == 0 {
		return VariantDatum{}, false, fmt.Errorf("call at %v:%v has no genotypes; allele counts cannot be computed without them", variant.Chrom, variant.Pos)
	}
	count := alleleCount(variant)
	if count < 1 {
		// no alternate allele observed in any sample
		return VariantDatum{}, false, nil
	}
	qualRaw, _ := variant.QualValue()
	return VariantDatum{
		Annotations:  recal.annotations(variant),
		IsKnown:      recal.known.Contains(variant.Chrom, variant.Pos),
		IsTransition: isTransition(variant.Ref, variant.Alt[0]),
		AlleleCount:  count,
		QualRaw:      qualRaw,
		variantIndex: index,
	}, true, nil
}

type collectResult struct {
	data []VariantDatum
	err  error
}

// Collect performs the collection phase: every eligible call becomes
// a VariantDatum. The pass is parallelized over independent slices of
// the input; the partial populations are merged by ordered
// concatenation, so the collected population follows input order.
func (recal *Recalibrator) Collect(v *vcf.Vcf) error {
	result := parallel.RangeReduce(0, len(v.Variants), 0, func(low, high int) interface{} {
		var partial collectResult
		for index := low; index < high; index++ {
			variant := v.Variants[index]
			if !recal.eligible(variant) {
				continue
			}
			datum, ok, err := recal.makeDatum(variant, index)
			if err != nil {
				partial.err = err
				return partial
			}
			if ok {
				partial.data = append(partial.data, datum)
			}
		}
		return partial
	}, func(x, y interface{}) interface{} {
		r1 := x.(collectResult)
		r2 := y.(collectResult)
		r1.data = append(r1.data, r2.data...)
		if r1.err == nil {
			r1.err = r2.err
		}
		return r1
	}).(collectResult)
	if result.err != nil {
		return result.err
	}
	for _, datum := range result.data {
		recal.manager.AddDatum(datum)
	}
	log.Printf("Collected %v single-nucleotide variant calls from %v input records.", len(recal.manager.Data), len(v.Variants))
	return nil
}

// Train performs the training step, once, on the complete collected
// population: population statistics, the allele-count prior, and the
// Gaussian mixture fit.
func (recal *Recalibrator) Train() error {
	if err := recal.manager.Finalize(); err != nil {
		return err
	}
	counts := make([]int, 0, len(recal.manager.Data))
	for i := range recal.manager.Data {
		if recal.manager.Trainable(i) {
			counts = append(counts, recal.manager.Data[i].AlleleCount)
		}
	}
	recal.acPrior = FitAlleleCountPrior(counts)
	gmm, err := FitGaussianMixture(recal.manager.TrainingData(), EMConfig{
		Clusters:      recal.config.Clusters,
		BackoffFactor: recal.config.BackoffFactor,
		Tolerance:     recal.config.Tolerance,
		MaxIterations: recal.config.MaxIterations,
		Seed:          recal.config.Seed,
	})
	if err != nil {
		return err
	}
	recal.gmm = gmm
	log.Printf("Trained %v-cluster Gaussian mixture model over annotations %v (run %v).", recal.config.Clusters, recal.config.AnnotationKeys, recal.runID)
	return nil
}

func (recal *Recalibrator) sitePrior(isKnown bool) float64 {
	if isKnown {
		return recal.knownSitePrior
	}
	return recal.novelSitePrior
}

// scoreDatum computes the recalibrated quality of a datum. It is a
// pure function of the trained model state and the datum, so scoring
// the same datum twice yields the same quality.
func (recal *Recalibrator) scoreDatum(datum *VariantDatum) float64 {
	pTrue := recal.gmm.Density(recal.manager.Standardize(datum.Annotations)) *
		recal.acPrior.Prob(datum.AlleleCount) *
		recal.sitePrior(datum.IsKnown)
	return recal.config.QualityScaleFactor * PhredScale(math.Max(1-pTrue, minErrorRate))
}

// Score performs the scoring phase: every collected datum gets its
// recalibrated quality, and the originating call is rewritten with
// the new QUAL, the original quality preserved under OQ, and the
// FILTER column reset to PASS. Calls that did not qualify for
// collection are left untouched.
func (recal *Recalibrator) Score(v *vcf.Vcf) {
	if recal.gmm == nil {
		log.Panic("Score called before Train")
	}
	v.Header.AddInfoLine(oqInfoLine, OQ, "1", vcf.Float)
	v.Header.Lines = append(v.Header.Lines, "##source="+utils.ProgramName)
	data := recal.manager.Data
	parallel.Range(0, len(data), 0, func(low, high int) {
		for i := low; i < high; i++ {
			if !recal.manager.Trainable(i) {
				continue
			}
			datum := &data[i]
			datum.Qual = recal.scoreDatum(datum)
			variant := v.Variants[datum.variantIndex]
			variant.Info.Set(OQ, datum.QualRaw)
			variant.SetQual(datum.Qual)
			variant.Filter = []utils.Symbol{vcf.PASS}
		}
	})
}
