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

// Package sites implements the known-variant reference track that the
// recalibrator uses to distinguish known from novel sites.
package sites

import (
	"fmt"
	"sort"

	psort "github.com/exascience/pargo/sort"

	"github.com/vqlab/varcal/vcf"
)

// Sites maps chromosome names to sorted, deduplicated site positions.
type Sites map[string][]int32

type stablePositionSorter []int32

func (s stablePositionSorter) SequentialSort(i, j int) {
	sort.SliceStable(s[i:j], func(k, l int) bool {
		return s[i:j][k] < s[i:j][l]
	})
}

func (s stablePositionSorter) NewTemp() psort.StableSorter {
	return stablePositionSorter(make([]int32, len(s)))
}

func (s stablePositionSorter) Len() int {
	return len(s)
}

func (s stablePositionSorter) Less(i, j int) bool {
	return s[i] < s[j]
}

func (s stablePositionSorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(stablePositionSorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

func dedup(positions []int32) []int32 {
	i := 0
	for j := 1; j < len(positions); j++ {
		if positions[j] != positions[i] {
			i++
			positions[i] = positions[j]
		}
	}
	return positions[:i+1]
}

// Contains reports whether the given position on the given chromosome
// is a known site.
func (s Sites) Contains(chrom string, pos int32) bool {
	positions := s[chrom]
	for left, right := 0, len(positions)-1; left <= right; {
		mid := (left + right) / 2
		switch {
		case positions[mid] < pos:
			left = mid + 1
		case positions[mid] > pos:
			right = mid - 1
		default:
			return true
		}
	}
	return false
}

// Size returns the total number of known sites across all
// chromosomes.
func (s Sites) Size() (size int) {
	for _, positions := range s {
		size += len(positions)
	}
	return size
}

// FromVcf builds the known-site set from the variant positions of an
// in-memory VCF.
func FromVcf(v *vcf.Vcf) Sites {
	s := make(Sites)
	for _, variant := range v.Variants {
		if variant.Pos >= 0 {
			s[variant.Chrom] = append(s[variant.Chrom], variant.Pos)
		}
	}
	for chrom, positions := range s {
		psort.StableSort(stablePositionSorter(positions))
		s[chrom] = dedup(positions)
	}
	return s
}

// FromVcfFile loads the known-site set from a VCF file. An empty
// track is an error: the recalibration model is critically dependent
// on being able to distinguish known and novel sites.
func FromVcfFile(name string) (Sites, error) {
	v, err := vcf.ReadVcf(name)
	if err != nil {
		return nil, err
	}
	s := FromVcf(v)
	if s.Size() == 0 {
		return nil, fmt.Errorf("known-sites file %v contains no usable sites", name)
	}
	return s, nil
}
