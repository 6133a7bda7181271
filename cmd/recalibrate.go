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

package cmd

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/vqlab/varcal/recal"
	"github.com/vqlab/varcal/sites"
	"github.com/vqlab/varcal/utils"
	"github.com/vqlab/varcal/vcf"
)

// RecalibrateHelp is the help string for this command.
const RecalibrateHelp = "\nrecalibrate parameters:\n" +
	"varcal recalibrate vcf-file known-sites-file\n" +
	"--annotations list\n" +
	"--cluster-file file\n" +
	"[--target-titv ratio]\n" +
	"[--backoff factor]\n" +
	"[--desired-num-variants nr]\n" +
	"[--ignore-all-filters]\n" +
	"[--ignore-filter list]\n" +
	"[--known-prior phred]\n" +
	"[--novel-prior phred]\n" +
	"[--quality-scale-factor factor]\n" +
	"[--clusters nr]\n" +
	"[--em-tolerance tolerance]\n" +
	"[--em-max-iterations nr]\n" +
	"[--seed seed]\n" +
	"[--model name]\n" +
	"[--output-prefix name]\n" +
	"[--path-to-rscript path]\n" +
	"[--path-to-resources path]\n" +
	"[--nr-of-threads nr]\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

// Recalibrate implements the varcal recalibrate command.
func Recalibrate() error {
	var (
		targetTiTv         float64
		backoff            float64
		desiredNumVariants int
		ignoreAllFilters   bool
		ignoreFilter       string
		knownPrior         int
		novelPrior         int
		qualityScaleFactor float64
		annotations        string
		clusters           int
		emTolerance        float64
		emMaxIterations    int
		seed               int64
		modelName          string
		outputPrefix       string
		clusterFile        string
		pathToRscript      string
		pathToResources    string
		nrOfThreads        int
		timed              bool
		profile            string
		logPath            string
	)

	var flags flag.FlagSet

	flags.Float64Var(&targetTiTv, "target-titv", 2.1, "expected transition/transversion ratio, recorded in the optimization curve")
	flags.Float64Var(&backoff, "backoff", 1.0, "covariance backoff factor for the Gaussian mixture model")
	flags.IntVar(&desiredNumVariants, "desired-num-variants", 0, "report only the curve row closest to this retained variant count")
	flags.BoolVar(&ignoreAllFilters, "ignore-all-filters", false, "score calls regardless of their filter status")
	flags.StringVar(&ignoreFilter, "ignore-filter", "", "list of filter names whose presence does not exclude a call from scoring")
	flags.IntVar(&knownPrior, "known-prior", 9, "phred-scaled prior for calls at known sites")
	flags.IntVar(&novelPrior, "novel-prior", 2, "phred-scaled prior for calls at novel sites")
	flags.Float64Var(&qualityScaleFactor, "quality-scale-factor", 50.0, "scale factor for the recalibrated qualities")
	flags.StringVar(&annotations, "annotations", "", "list of INFO annotations the model is trained on")
	flags.IntVar(&clusters, "clusters", 8, "number of Gaussian mixture clusters")
	flags.Float64Var(&emTolerance, "em-tolerance", 1e-3, "log-likelihood improvement below which EM stops")
	flags.IntVar(&emMaxIterations, "em-max-iterations", 100, "maximum number of EM iterations")
	flags.Int64Var(&seed, "seed", 47, "random seed for the cluster initialization")
	flags.StringVar(&modelName, "model", "GAUSSIAN_MIXTURE_MODEL", "recalibration model to train")
	flags.StringVar(&outputPrefix, "output-prefix", "optimizer", "prefix for the recalibrated vcf and optimization curve files")
	flags.StringVar(&clusterFile, "cluster-file", "", "file to write the trained model to")
	flags.StringVar(&pathToRscript, "path-to-rscript", "Rscript", "path to the Rscript executable for plotting")
	flags.StringVar(&pathToResources, "path-to-resources", "", "directory containing the plotting scripts")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 4, RecalibrateHelp)

	input := getFilename(os.Args[2], RecalibrateHelp)
	knownSitesFile := getFilename(os.Args[3], RecalibrateHelp)

	setLogOutput(logPath)

	outputVcf := outputPrefix + ".vcf"
	outputDat := outputPrefix + ".dat"

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	if !checkExist("", knownSitesFile) {
		sanityChecksFailed = true
	}
	if !checkCreate("--output-prefix", outputVcf) {
		sanityChecksFailed = true
	}
	if !checkCreate("--output-prefix", outputDat) {
		sanityChecksFailed = true
	}
	if clusterFile == "" {
		sanityChecksFailed = true
		log.Println("Error: A cluster file for the trained model is required. Please add the --cluster-file option to your call.")
	} else if !checkCreate("--cluster-file", clusterFile) {
		sanityChecksFailed = true
	}
	if annotations == "" {
		sanityChecksFailed = true
		log.Println("Error: No annotations to train the model on. Please add the --annotations option to your call.")
	}
	if backoff < 1 {
		sanityChecksFailed = true
		log.Println("Error: Invalid backoff factor: ", backoff)
	}
	if knownPrior <= 0 || novelPrior <= 0 {
		sanityChecksFailed = true
		log.Println("Error: Site priors must be positive phred values.")
	}
	if qualityScaleFactor <= 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid quality-scale-factor: ", qualityScaleFactor)
	}
	if clusters < 1 {
		sanityChecksFailed = true
		log.Println("Error: Invalid number of clusters: ", clusters)
	}
	if emTolerance <= 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid em-tolerance: ", emTolerance)
	}
	if emMaxIterations < 1 {
		sanityChecksFailed = true
		log.Println("Error: Invalid em-max-iterations: ", emMaxIterations)
	}
	if desiredNumVariants < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid desired-num-variants: ", desiredNumVariants)
	}
	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	model, err := recal.ParseModel(modelName)
	if err != nil {
		sanityChecksFailed = true
		log.Println("Error: ", err)
	}

	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, RecalibrateHelp)
		os.Exit(1)
	}

	// building the configuration and output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " recalibrate ", input, " ", knownSitesFile)
	fmt.Fprint(&command, " --annotations ", annotations)
	fmt.Fprint(&command, " --cluster-file ", clusterFile)
	fmt.Fprint(&command, " --target-titv ", targetTiTv)
	fmt.Fprint(&command, " --backoff ", backoff)
	if desiredNumVariants > 0 {
		fmt.Fprint(&command, " --desired-num-variants ", desiredNumVariants)
	}
	if ignoreAllFilters {
		fmt.Fprint(&command, " --ignore-all-filters")
	}
	if ignoreFilter != "" {
		fmt.Fprint(&command, " --ignore-filter ", ignoreFilter)
	}
	fmt.Fprint(&command, " --known-prior ", knownPrior)
	fmt.Fprint(&command, " --novel-prior ", novelPrior)
	fmt.Fprint(&command, " --quality-scale-factor ", qualityScaleFactor)
	fmt.Fprint(&command, " --clusters ", clusters)
	fmt.Fprint(&command, " --em-tolerance ", emTolerance)
	fmt.Fprint(&command, " --em-max-iterations ", emMaxIterations)
	fmt.Fprint(&command, " --seed ", seed)
	fmt.Fprint(&command, " --model ", modelName)
	fmt.Fprint(&command, " --output-prefix ", outputPrefix)
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nr-of-threads ", nrOfThreads)
	}
	if timed {
		fmt.Fprint(&command, " --timed")
	}
	if profile != "" {
		fmt.Fprint(&command, " --profile ", profile)
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	annotationKeys := strings.Split(annotations, ",")
	for i, key := range annotationKeys {
		annotationKeys[i] = strings.TrimSpace(key)
	}

	ignoreFilters := make(map[utils.Symbol]bool)
	if ignoreFilter != "" {
		for _, name := range strings.Split(ignoreFilter, ",") {
			ignoreFilters[utils.Intern(strings.TrimSpace(name))] = true
		}
	}

	config := recal.Config{
		TargetTiTv:         targetTiTv,
		BackoffFactor:      backoff,
		DesiredNumVariants: desiredNumVariants,
		IgnoreAllFilters:   ignoreAllFilters,
		IgnoreFilters:      ignoreFilters,
		KnownPrior:         knownPrior,
		NovelPrior:         novelPrior,
		QualityScaleFactor: qualityScaleFactor,
		AnnotationKeys:     annotationKeys,
		Clusters:           clusters,
		Tolerance:          emTolerance,
		MaxIterations:      emMaxIterations,
		Seed:               seed,
		Model:              model,
	}

	// executing command

	log.Println("Executing command:\n", command.String())

	var known sites.Sites
	if err := timedRun(timed, profile, "Loading known sites.", 1, func() (err error) {
		known, err = sites.Load(knownSitesFile)
		return err
	}); err != nil {
		return err
	}

	recalibrator, err := recal.NewRecalibrator(config, known)
	if err != nil {
		return err
	}

	var v *vcf.Vcf
	if err := timedRun(timed, profile, "Reading VCF into memory.", 2, func() (err error) {
		v, err = vcf.ReadVcf(input)
		return err
	}); err != nil {
		return err
	}

	if err := timedRun(timed, profile, "Collecting variant data.", 3, func() error {
		return recalibrator.Collect(v)
	}); err != nil {
		return err
	}

	if err := timedRun(timed, profile, "Training the recalibration model.", 4, func() error {
		return recalibrator.Train()
	}); err != nil {
		return err
	}

	if err := timedRun(timed, profile, "Writing the cluster file.", 5, func() error {
		return recalibrator.WriteClusterFile(clusterFile)
	}); err != nil {
		return err
	}

	if err := timedRun(timed, profile, "Scoring variants.", 6, func() error {
		recalibrator.Score(v)
		return nil
	}); err != nil {
		return err
	}

	if err := timedRun(timed, profile, "Write to file.", 7, func() error {
		return vcf.WriteVcf(v, outputVcf)
	}); err != nil {
		return err
	}

	if err := timedRun(timed, profile, "Generating the optimization curve.", 8, func() error {
		return recalibrator.WriteOptimizationCurve(outputDat)
	}); err != nil {
		return err
	}

	if err := recalibrator.PlotOptimizationCurve(pathToRscript, pathToResources, outputDat); err != nil {
		log.Println("Error: ", err)
	}

	return nil
}
