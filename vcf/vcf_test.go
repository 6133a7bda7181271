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

package vcf

import (
	"bufio"
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vqlab/varcal/utils"
)

const testHeader = "##fileformat=VCFv4.3\n" +
	"##INFO=<ID=QD,Number=1,Type=Float,Description=\"Quality by depth\">\n" +
	"##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Combined depth\">\n" +
	"##INFO=<ID=DB,Number=0,Type=Flag,Description=\"dbSNP membership\">\n" +
	"##FILTER=<ID=LowQual,Description=\"Low quality call\">\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tsample1\tsample2\n"

var testVariantLines = []string{
	"chr1\t100\trs1\tA\tG\t25\tPASS\tQD=12.5;DP=30;DB\tGT:DP\t0/1:20\t1|1:25\n",
	"chr1\t200\t.\tC\tT\t.\tLowQual\tQD=3.25;DP=10\tGT:DP\t0/0:9\t./.:7\n",
	"chr1\t300\t.\tAT\tA\t50\t.\t.\tGT\t0/1\t0/1\n",
}

func parseTestVcf(t *testing.T) *Vcf {
	var contents strings.Builder
	contents.WriteString(testHeader)
	for _, line := range testVariantLines {
		contents.WriteString(line)
	}
	reader := bufio.NewReader(strings.NewReader(contents.String()))
	hdr, err := ParseHeader(reader)
	if err != nil {
		t.Error("ParseHeader failed")
		return nil
	}
	v := &Vcf{Header: hdr}
	vp := hdr.NewVariantParser()
	for _, line := range testVariantLines {
		variant, err := vp.Parse(strings.TrimRight(line, "\n"))
		if err != nil {
			t.Error("Parse failed")
			return nil
		}
		v.Variants = append(v.Variants, variant)
	}
	return v
}

func TestParseHeader(t *testing.T) {
	v := parseTestVcf(t)
	if v == nil {
		return
	}
	hdr := v.Header
	if hdr.FileFormat != "##fileformat=VCFv4.3" {
		t.Error("ParseHeader fileformat failed")
	}
	if len(hdr.Lines) != 4 {
		t.Error("ParseHeader meta lines failed")
	}
	if len(hdr.Infos) != 3 {
		t.Error("ParseHeader info declarations failed")
	}
	if hdr.InfoType(utils.Intern("QD")) != Float ||
		hdr.InfoType(utils.Intern("DP")) != Integer ||
		hdr.InfoType(utils.Intern("DB")) != Flag {
		t.Error("ParseHeader info types failed")
	}
	if hdr.InfoType(utils.Intern("XX")) != InvalidType {
		t.Error("ParseHeader unknown info type failed")
	}
	if len(hdr.Samples) != 2 || hdr.Samples[0] != "sample1" || hdr.Samples[1] != "sample2" {
		t.Error("ParseHeader samples failed")
	}
}

func TestParseVariants(t *testing.T) {
	v := parseTestVcf(t)
	if v == nil {
		return
	}

	snp := v.Variants[0]
	if snp.Chrom != "chr1" || snp.Pos != 100 {
		t.Error("Parse position failed")
	}
	if len(snp.ID) != 1 || snp.ID[0] != "rs1" {
		t.Error("Parse id failed")
	}
	if !snp.IsSNP() {
		t.Error("Parse snp failed")
	}
	if qual, ok := snp.QualValue(); !ok || qual != 25 {
		t.Error("Parse qual failed")
	}
	if !snp.Pass() || snp.Filtered() {
		t.Error("Parse pass failed")
	}
	if qd, ok := snp.Info.Get(utils.Intern("QD")); !ok || qd.(float64) != 12.5 {
		t.Error("Parse float info failed")
	}
	if dp, ok := snp.Info.Get(utils.Intern("DP")); !ok || dp.(int) != 30 {
		t.Error("Parse integer info failed")
	}
	if db, ok := snp.Info.Get(utils.Intern("DB")); !ok || db.(bool) != true {
		t.Error("Parse flag info failed")
	}
	if len(snp.Genotypes) != 2 {
		t.Error("Parse genotypes failed")
	}
	het := snp.Genotypes[0]
	if het.Phased || len(het.GT) != 2 || het.GT[0] != 0 || het.GT[1] != 1 {
		t.Error("Parse het genotype failed")
	}
	hom := snp.Genotypes[1]
	if !hom.Phased || hom.GT[0] != 1 || hom.GT[1] != 1 {
		t.Error("Parse phased genotype failed")
	}

	filtered := v.Variants[1]
	if _, ok := filtered.QualValue(); ok {
		t.Error("Parse missing qual failed")
	}
	if !filtered.Filtered() || filtered.Pass() {
		t.Error("Parse filter failed")
	}
	if missing := filtered.Genotypes[1]; missing.GT[0] != -1 || missing.GT[1] != -1 {
		t.Error("Parse missing genotype failed")
	}

	indel := v.Variants[2]
	if indel.IsSNP() {
		t.Error("Parse indel failed")
	}
	if indel.ID != nil || indel.Info != nil {
		t.Error("Parse missing columns failed")
	}
}

func TestFormatRoundTrip(t *testing.T) {
	v := parseTestVcf(t)
	if v == nil {
		return
	}
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	if v.Header.Format(out) != nil {
		t.Error("header Format failed")
	}
	_ = out.Flush()
	if buf.String() != testHeader {
		t.Error("header round trip failed")
	}
	for i, variant := range v.Variants {
		line, err := variant.Format(nil)
		if err != nil || string(line) != testVariantLines[i] {
			t.Error("variant round trip failed")
		}
	}
}

func TestReadWriteVcf(t *testing.T) {
	v := parseTestVcf(t)
	if v == nil {
		return
	}
	name := filepath.Join(t.TempDir(), "test.vcf")
	if WriteVcf(v, name) != nil {
		t.Error("WriteVcf failed")
		return
	}
	contents, err := ioutil.ReadFile(name)
	if err != nil {
		t.Error("WriteVcf read back failed")
		return
	}
	var expected strings.Builder
	expected.WriteString(testHeader)
	for _, line := range testVariantLines {
		expected.WriteString(line)
	}
	if string(contents) != expected.String() {
		t.Error("WriteVcf contents failed")
	}
	loaded, err := ReadVcf(name)
	if err != nil {
		t.Error("ReadVcf failed")
		return
	}
	if len(loaded.Variants) != len(v.Variants) {
		t.Error("ReadVcf variant count failed")
	}
	for i, variant := range loaded.Variants {
		line, err := variant.Format(nil)
		if err != nil || string(line) != testVariantLines[i] {
			t.Error("ReadVcf round trip failed")
		}
	}
}
