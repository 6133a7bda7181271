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
	"github.com/vqlab/varcal/utils"
)

// The supported VCF file format version.
const (
	FileFormatVersion     = "VCFv4.3"
	FileFormatVersionLine = "##fileformat=VCFv4.3"
)

// DefaultHeaderColumns for VCF files.
var DefaultHeaderColumns = []string{"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}

// Type is an enumeration type for the declared types of VCF INFO fields
type Type uint

// The different VCF INFO field types
const (
	InvalidType Type = iota
	Integer          // represented as int
	Float            // represented as float64
	Flag             // represented as bool with fixed value true
	Character        // represented as rune
	String           // represented as string
)

// Commonly used VCF entries.
var (
	GT   = utils.Intern("GT")
	PASS = utils.Intern("PASS")
)

type (
	// An InfoDeclaration is a parsed ##INFO header line. Only the
	// parts needed for typing the INFO section of variant lines are
	// retained; the verbatim line is kept in Header.Lines.
	InfoDeclaration struct {
		ID     utils.Symbol
		Number string
		Type   Type
	}

	// Header section of a VCF file. All meta lines other than the
	// fileformat line are kept verbatim in Lines, in input order, so
	// the header can be written back unchanged. INFO declarations are
	// additionally parsed into Infos.
	Header struct {
		FileFormat string
		Lines      []string
		Infos      []*InfoDeclaration
		Columns    []string
		Samples    []string
	}

	// Genotype is the structured representation of one sample column
	// of a variant line. Only the GT entry is parsed; Raw holds the
	// whole column for writing back verbatim.
	Genotype struct {
		Phased bool
		GT     []int32 // allele indexes, < 0 for missing entries
		Raw    string
	}

	// Variant line in a VCF file.
	Variant struct {
		Chrom          string
		Pos            int32    // < 0 if unknown
		ID             []string // nil/empty if missing
		Ref            string
		Alt            []string       // nil/empty if missing
		Qual           interface{}    // float64, or nil if missing
		Filter         []utils.Symbol // nil/empty if missing
		Info           utils.FieldMap // values are int, float64, bool, rune, string, or []interface{}
		GenotypeFormat []utils.Symbol
		Genotypes      []Genotype
	}

	// Vcf represents the full contents of a VCF file.
	Vcf struct {
		Header   *Header
		Variants []*Variant
	}
)

// NewHeader creates an empty instance.
func NewHeader() *Header {
	return &Header{
		FileFormat: FileFormatVersionLine,
		Columns:    DefaultHeaderColumns,
	}
}

// InfoType returns the declared type of the given INFO key, or
// InvalidType if the key is not declared in the header.
func (header *Header) InfoType(id utils.Symbol) Type {
	for _, info := range header.Infos {
		if info.ID == id {
			return info.Type
		}
	}
	return InvalidType
}

// AddInfoLine appends a verbatim ##INFO meta line and its parsed
// declaration to the header.
func (header *Header) AddInfoLine(line string, id utils.Symbol, number string, typ Type) {
	header.Lines = append(header.Lines, line)
	header.Infos = append(header.Infos, &InfoDeclaration{ID: id, Number: number, Type: typ})
}

// Pass determines whether the variant passed all filters.
func (v *Variant) Pass() bool {
	return len(v.Filter) == 1 && v.Filter[0] == PASS
}

// Filtered determines whether the variant is marked with one or more
// actual filters. An empty or missing FILTER column counts as not
// filtered, like PASS.
func (v *Variant) Filtered() bool {
	return len(v.Filter) > 0 && !v.Pass()
}

// IsSNP determines whether the variant is a biallelic single
// nucleotide substitution.
func (v *Variant) IsSNP() bool {
	return len(v.Ref) == 1 && len(v.Alt) == 1 && len(v.Alt[0]) == 1 && v.Ref != v.Alt[0]
}

// QualValue returns the QUAL column as a float64, or 0 and false if
// it is missing.
func (v *Variant) QualValue() (float64, bool) {
	if qual, ok := v.Qual.(float64); ok {
		return qual, true
	}
	return 0, false
}

// SetQual sets the QUAL column.
func (v *Variant) SetQual(qual float64) {
	v.Qual = qual
}
