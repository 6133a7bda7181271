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
	"io"
	"log"
	"os"
	"os/exec"
	"path"
	"sort"
	"strconv"
)

// A CurvePoint is one row of the optimization curve: the yield and
// accuracy proxies of the call set retained at a quality threshold.
type CurvePoint struct {
	Threshold     float64 // recalibrated quality cutoff
	Retained      int     // number of variants at or above the threshold
	KnownFraction float64 // fraction of the retained set matching the known-sites track
	NovelKnown    float64 // novel/known ratio of the retained set, 0 when no known calls are retained
	TiTv          float64 // transition/transversion ratio of the retained set
}

// OptimizationCurve sweeps a quality threshold over the scored
// population, sorted by recalibrated quality descending with ties
// broken by input order, and reports one point per distinct quality
// value. The retained count is non-decreasing as the threshold
// decreases.
func (recal *Recalibrator) OptimizationCurve() []CurvePoint {
	scored := make([]*VariantDatum, 0, len(recal.manager.Data))
	for i := range recal.manager.Data {
		if recal.manager.Trainable(i) {
			scored = append(scored, &recal.manager.Data[i])
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Qual > scored[j].Qual
	})
	var points []CurvePoint
	var known, transitions, transversions int
	for i, datum := range scored {
		if datum.IsKnown {
			known++
		}
		if datum.IsTransition {
			transitions++
		} else {
			transversions++
		}
		if i+1 < len(scored) && scored[i+1].Qual == datum.Qual {
			continue
		}
		retained := i + 1
		titv := 0.0
		if transversions > 0 {
			titv = float64(transitions) / float64(transversions)
		}
		novelKnown := float64(retained - known)
		if known > 0 {
			novelKnown /= float64(known)
		} else {
			novelKnown = 0
		}
		points = append(points, CurvePoint{
			Threshold:     datum.Qual,
			Retained:      retained,
			KnownFraction: float64(known) / float64(retained),
			NovelKnown:    novelKnown,
			TiTv:          titv,
		})
	}
	return points
}

// SelectCurvePoint returns the curve point whose retained count is
// closest to the desired number of variants. A desired count at or
// above the population size selects the last point, whose threshold
// is the minimum observed quality.
func SelectCurvePoint(points []CurvePoint, desired int) CurvePoint {
	best := points[0]
	for _, point := range points[1:] {
		if absInt(point.Retained-desired) < absInt(best.Retained-desired) {
			best = point
		}
	}
	return best
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func maxInt(x, y int) int {
	if x > y {
		return x
	}
	return y
}

type curveWriter struct {
	w   io.Writer
	err error
}

func (cw *curveWriter) fprintf(format string, a ...interface{}) {
	if cw.err == nil {
		_, cw.err = fmt.Fprintf(cw.w, format, a...)
	}
}

const (
	thresholdString     = "Threshold"
	retainedString      = "Retained"
	knownFractionString = "KnownFraction"
	novelKnownString    = "NovelKnown"
	tiTvString          = "TiTv"
)

// WriteOptimizationCurve writes the optimization curve as a
// fixed-width table to the given file, for consumption by the
// external plotting script. If the desired number of variants is
// configured, only the single closest row is written.
func (recal *Recalibrator) WriteOptimizationCurve(name string) (err error) {
	points := recal.OptimizationCurve()
	if len(points) == 0 {
		return fmt.Errorf("no scored variants; cannot generate an optimization curve")
	}
	if recal.config.DesiredNumVariants > 0 {
		selected := SelectCurvePoint(points, recal.config.DesiredNumVariants)
		log.Printf("Selected quality threshold %.4f, retaining %v variants (desired %v).", selected.Threshold, selected.Retained, recal.config.DesiredNumVariants)
		points = []CurvePoint{selected}
	}
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := file.Close(); err == nil {
			err = nerr
		}
	}()
	cw := &curveWriter{w: file}
	cw.fprintf("# varcal optimization curve, run %v\n", recal.runID)
	cw.fprintf("# target Ti/Tv ratio: %.2f\n", recal.config.TargetTiTv)

	maxLenThreshold := len(thresholdString)
	maxLenRetained := len(retainedString)
	maxLenKnownFraction := len(knownFractionString)
	maxLenNovelKnown := len(novelKnownString)
	maxLenTiTv := len(tiTvString)
	for _, point := range points {
		maxLenThreshold = maxInt(maxLenThreshold, len(strconv.FormatFloat(point.Threshold, 'f', 4, 64)))
		maxLenRetained = maxInt(maxLenRetained, len(strconv.FormatInt(int64(point.Retained), 10)))
		maxLenKnownFraction = maxInt(maxLenKnownFraction, len(strconv.FormatFloat(point.KnownFraction, 'f', 4, 64)))
		maxLenNovelKnown = maxInt(maxLenNovelKnown, len(strconv.FormatFloat(point.NovelKnown, 'f', 4, 64)))
		maxLenTiTv = maxInt(maxLenTiTv, len(strconv.FormatFloat(point.TiTv, 'f', 4, 64)))
	}

	cw.fprintf("%-[1]*[2]s", maxLenThreshold, thresholdString)
	cw.fprintf("  %-[1]*[2]s", maxLenRetained, retainedString)
	cw.fprintf("  %-[1]*[2]s", maxLenKnownFraction, knownFractionString)
	cw.fprintf("  %-[1]*[2]s", maxLenNovelKnown, novelKnownString)
	cw.fprintf("  %-[1]*[2]s\n", maxLenTiTv, tiTvString)

	for _, point := range points {
		cw.fprintf("%[1]*.4[2]f", maxLenThreshold, point.Threshold)
		cw.fprintf("  %[1]*[2]d", maxLenRetained, point.Retained)
		cw.fprintf("  %[1]*.4[2]f", maxLenKnownFraction, point.KnownFraction)
		cw.fprintf("  %[1]*.4[2]f", maxLenNovelKnown, point.NovelKnown)
		cw.fprintf("  %[1]*.4[2]f\n", maxLenTiTv, point.TiTv)
	}
	if cw.err != nil {
		return cw.err
	}
	return err
}

// PlotOptimizationCurve invokes the external Rscript plotting step on
// an already-written curve table. The command line is printed first,
// to make clear what is being executed and how one might modify it. A
// failure to run the script does not invalidate the recalibrated
// output or the curve table; the caller reports it as a distinct
// error.
func (recal *Recalibrator) PlotOptimizationCurve(rscript, resources, datFile string) error {
	script := path.Join(resources, "plot_OptimizationCurve.R")
	titv := strconv.FormatFloat(recal.config.TargetTiTv, 'f', -1, 64)
	log.Println("Plotting command:", rscript, script, datFile, titv)
	if err := exec.Command(rscript, script, datFile, titv).Run(); err != nil {
		return fmt.Errorf("unable to execute Rscript command %v %v %v %v: %v", rscript, script, datFile, titv, err)
	}
	return nil
}
