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

package sites

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/vqlab/varcal/vcf"
)

func makeTestVcf() *vcf.Vcf {
	v := &vcf.Vcf{Header: vcf.NewHeader()}
	for _, pos := range []int32{500, 100, 300, 100, 200} {
		v.Variants = append(v.Variants, &vcf.Variant{Chrom: "chr1", Pos: pos, Ref: "A", Alt: []string{"G"}})
	}
	v.Variants = append(v.Variants, &vcf.Variant{Chrom: "chr2", Pos: 42, Ref: "C", Alt: []string{"T"}})
	return v
}

func sitesEqual(s1, s2 Sites) bool {
	if len(s1) != len(s2) {
		return false
	}
	for chrom, positions1 := range s1 {
		positions2 := s2[chrom]
		if len(positions1) != len(positions2) {
			return false
		}
		for i, pos := range positions1 {
			if pos != positions2[i] {
				return false
			}
		}
	}
	return true
}

func TestFromVcf(t *testing.T) {
	s := FromVcf(makeTestVcf())
	if !sitesEqual(s, Sites{"chr1": {100, 200, 300, 500}, "chr2": {42}}) {
		t.Error("FromVcf failed")
	}
	if s.Size() != 5 {
		t.Error("FromVcf size failed")
	}
}

func TestContains(t *testing.T) {
	s := FromVcf(makeTestVcf())
	for _, pos := range []int32{100, 200, 300, 500} {
		if !s.Contains("chr1", pos) {
			t.Error("Contains hit failed")
		}
	}
	if s.Contains("chr1", 150) || s.Contains("chr1", 50) || s.Contains("chr1", 600) {
		t.Error("Contains miss failed")
	}
	if s.Contains("chr3", 100) {
		t.Error("Contains chromosome failed")
	}
	if !s.Contains("chr2", 42) {
		t.Error("Contains chr2 failed")
	}
}

func TestContainsLarge(t *testing.T) {
	positions := make([]int32, 0x10000)
	for i := range positions {
		positions[i] = rand.Int31()
	}
	v := &vcf.Vcf{Header: vcf.NewHeader()}
	for _, pos := range positions {
		v.Variants = append(v.Variants, &vcf.Variant{Chrom: "chr1", Pos: pos, Ref: "A", Alt: []string{"G"}})
	}
	s := FromVcf(v)
	for _, pos := range positions {
		if !s.Contains("chr1", pos) {
			t.Error("Contains large failed")
			return
		}
	}
}

func TestSitesFileRoundTrip(t *testing.T) {
	s := FromVcf(makeTestVcf())
	name := filepath.Join(t.TempDir(), "known.sites")
	if ToSitesFile(s, name) != nil {
		t.Error("ToSitesFile failed")
		return
	}
	loaded, err := FromSitesFile(name)
	if err != nil {
		t.Error("FromSitesFile failed")
		return
	}
	if !sitesEqual(s, loaded) {
		t.Error("sites file round trip failed")
	}
	viaLoad, err := Load(name)
	if err != nil || !sitesEqual(s, viaLoad) {
		t.Error("Load dispatch failed")
	}
	if _, err := FromSitesFile(filepath.Join(t.TempDir(), "missing.sites")); err == nil {
		t.Error("FromSitesFile missing file failed")
	}
}
