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
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/exascience/pargo/pipeline"

	"github.com/vqlab/varcal/utils"
)

func parseMetaFields(line string) map[string]string {
	open := strings.IndexByte(line, '<')
	close := strings.LastIndexByte(line, '>')
	if open < 0 || close < open {
		return nil
	}
	fields := make(map[string]string)
	var sc stringScanner
	sc.reset(line[open+1 : close])
	for sc.len() > 0 {
		key, ok := sc.until('=')
		if !ok {
			break
		}
		var value string
		if sc.accept('"') {
			value, _ = sc.until('"')
			sc.accept(',')
		} else {
			value, _ = sc.until(',')
		}
		fields[key] = value
	}
	return fields
}

func parseInfoType(s string) Type {
	switch s {
	case "Integer":
		return Integer
	case "Float":
		return Float
	case "Flag":
		return Flag
	case "Character":
		return Character
	case "String":
		return String
	default:
		return InvalidType
	}
}

const (
	fileFormatPrefix = "##fileformat=VCFv4."
	infoLinePrefix   = "##INFO="
)

func getLine(reader *bufio.Reader) (line string, err error) {
	line, err = reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ParseHeader parses a VCF header. All meta lines are kept verbatim;
// ##INFO lines are additionally parsed into declarations so the INFO
// section of variant lines can be typed.
func ParseHeader(reader *bufio.Reader) (hdr *Header, err error) {
	hdr = NewHeader()
	line, err := getLine(reader)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, fileFormatPrefix) {
		log.Println("Warning: VCF file does not start with a valid fileformat line:", line)
	}
	hdr.FileFormat = line
	for {
		b, err := reader.Peek(2)
		if err != nil {
			return nil, fmt.Errorf("%v, while parsing a VCF header", err)
		}
		if b[0] != '#' {
			return nil, fmt.Errorf("missing column header line in a VCF file")
		}
		if b[1] != '#' {
			break
		}
		if line, err = getLine(reader); err != nil {
			return nil, err
		}
		hdr.Lines = append(hdr.Lines, line)
		if strings.HasPrefix(line, infoLinePrefix) {
			fields := parseMetaFields(line)
			if fields == nil || fields["ID"] == "" {
				return nil, fmt.Errorf("invalid INFO meta line %v in a VCF file", line)
			}
			hdr.Infos = append(hdr.Infos, &InfoDeclaration{
				ID:     utils.Intern(fields["ID"]),
				Number: fields["Number"],
				Type:   parseInfoType(fields["Type"]),
			})
		}
	}
	line, err = getLine(reader)
	if err != nil {
		return nil, err
	}
	columns := strings.Split(line[1:], "\t")
	if len(columns) < len(DefaultHeaderColumns) {
		return nil, fmt.Errorf("too few columns in VCF header line %v", line)
	}
	hdr.Columns = columns[:len(DefaultHeaderColumns)]
	if len(columns) > len(DefaultHeaderColumns)+1 {
		hdr.Samples = columns[len(DefaultHeaderColumns)+1:]
	}
	return hdr, nil
}

// A VariantParser parses VCF variant lines, using the INFO
// declarations of the header it was created from.
type VariantParser struct {
	infoTypes map[utils.Symbol]Type
}

// NewVariantParser creates a VariantParser for this header.
func (header *Header) NewVariantParser() *VariantParser {
	infoTypes := make(map[utils.Symbol]Type, len(header.Infos))
	for _, info := range header.Infos {
		infoTypes[info.ID] = info.Type
	}
	return &VariantParser{infoTypes: infoTypes}
}

func parseTypedValue(s string, typ Type) (interface{}, error) {
	switch typ {
	case Integer:
		value, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return int(value), nil
	case Float:
		return strconv.ParseFloat(s, 64)
	case Character:
		for _, r := range s {
			return r, nil
		}
		return nil, fmt.Errorf("empty character value")
	case String:
		return s, nil
	default:
		// undeclared keys get a best-effort typing
		if value, err := strconv.ParseInt(s, 10, 64); err == nil {
			return int(value), nil
		}
		if value, err := strconv.ParseFloat(s, 64); err == nil {
			return value, nil
		}
		return s, nil
	}
}

func (vp *VariantParser) parseInfo(sc *stringScanner) (utils.FieldMap, error) {
	entry := sc.untilAny("=;\t")
	if entry == "." && !sc.accept('=') {
		sc.accept(';')
		return nil, nil
	}
	var info utils.FieldMap
	for {
		key := utils.Intern(entry)
		typ := vp.infoTypes[key]
		if !sc.accept('=') {
			if typ != Flag && typ != InvalidType {
				return nil, fmt.Errorf("INFO key %v used as a flag", entry)
			}
			info = append(info, utils.FieldMapEntry{Key: key, Value: true})
		} else {
			var values []interface{}
			for {
				s := sc.untilAny(",;\t")
				value, err := parseTypedValue(s, typ)
				if err != nil {
					return nil, err
				}
				values = append(values, value)
				if !sc.accept(',') {
					break
				}
			}
			if len(values) == 1 {
				info = append(info, utils.FieldMapEntry{Key: key, Value: values[0]})
			} else {
				info = append(info, utils.FieldMapEntry{Key: key, Value: values})
			}
		}
		if !sc.accept(';') {
			break
		}
		entry = sc.untilAny("=;\t")
	}
	return info, nil
}

func parseGenotype(raw string) Genotype {
	gt := raw
	if index := strings.IndexByte(raw, ':'); index >= 0 {
		gt = raw[:index]
	}
	genotype := Genotype{Raw: raw}
	for len(gt) > 0 {
		sep := strings.IndexAny(gt, "/|")
		allele := gt
		if sep >= 0 {
			allele = gt[:sep]
			if gt[sep] == '|' {
				genotype.Phased = true
			}
			gt = gt[sep+1:]
		} else {
			gt = ""
		}
		if value, err := strconv.ParseInt(allele, 10, 32); err == nil {
			genotype.GT = append(genotype.GT, int32(value))
		} else {
			genotype.GT = append(genotype.GT, -1)
		}
	}
	return genotype
}

// Parse parses a VCF variant line.
func (vp *VariantParser) Parse(line string) (*Variant, error) {
	var sc stringScanner
	sc.reset(line)
	variant := &Variant{}
	chrom, ok := sc.until('\t')
	if !ok {
		return nil, fmt.Errorf("truncated VCF variant line %v", line)
	}
	variant.Chrom = chrom
	pos, ok := sc.until('\t')
	if !ok {
		return nil, fmt.Errorf("truncated VCF variant line %v", line)
	}
	if pos == "." {
		variant.Pos = -1
	} else {
		value, err := strconv.ParseInt(pos, 10, 32)
		if err != nil {
			return nil, err
		}
		variant.Pos = int32(value)
	}
	id, _ := sc.until('\t')
	if id != "." {
		variant.ID = strings.Split(id, ";")
	}
	variant.Ref, _ = sc.until('\t')
	alt, _ := sc.until('\t')
	if alt != "." {
		variant.Alt = strings.Split(alt, ",")
	}
	qual, _ := sc.until('\t')
	if qual != "." {
		value, err := strconv.ParseFloat(qual, 64)
		if err != nil {
			return nil, err
		}
		variant.Qual = value
	}
	filter, _ := sc.until('\t')
	if filter != "." {
		for _, name := range strings.Split(filter, ";") {
			variant.Filter = append(variant.Filter, utils.Intern(name))
		}
	}
	info, err := vp.parseInfo(&sc)
	if err != nil {
		return nil, fmt.Errorf("%v, while parsing VCF variant line %v", err, line)
	}
	variant.Info = info
	if sc.accept('\t') {
		format, _ := sc.until('\t')
		for _, name := range strings.Split(format, ":") {
			variant.GenotypeFormat = append(variant.GenotypeFormat, utils.Intern(name))
		}
		for sc.len() > 0 {
			raw, _ := sc.until('\t')
			variant.Genotypes = append(variant.Genotypes, parseGenotype(raw))
		}
	}
	return variant, nil
}

// Format outputs a VCF header.
func (header *Header) Format(out *bufio.Writer) (err error) {
	if _, err = out.WriteString(header.FileFormat); err != nil {
		return err
	}
	_ = out.WriteByte('\n')
	for _, line := range header.Lines {
		_, _ = out.WriteString(line)
		_ = out.WriteByte('\n')
	}
	_ = out.WriteByte('#')
	_, _ = out.WriteString(strings.Join(header.Columns, "\t"))
	if len(header.Samples) > 0 {
		_, _ = out.WriteString("\tFORMAT\t")
		_, _ = out.WriteString(strings.Join(header.Samples, "\t"))
	}
	return out.WriteByte('\n')
}

func formatStringList(out []byte, list []string, separator byte) []byte {
	if len(list) == 0 {
		return append(out, '.', '\t')
	}
	for _, entry := range list {
		out = append(append(out, entry...), separator)
	}
	out[len(out)-1] = '\t'
	return out
}

func formatSymbolList(out []byte, list []utils.Symbol, separator byte) []byte {
	for _, entry := range list {
		out = append(append(out, *entry...), separator)
	}
	out[len(out)-1] = '\t'
	return out
}

func formatValue(out []byte, value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case int:
		return strconv.AppendInt(out, int64(v), 10), nil
	case float64:
		return strconv.AppendFloat(out, v, 'f', -1, 64), nil
	case rune:
		return append(out, string(v)...), nil
	case string:
		return append(out, v...), nil
	default:
		return nil, fmt.Errorf("invalid INFO value %v", value)
	}
}

func formatInfo(out []byte, info utils.FieldMap) ([]byte, error) {
	if len(info) == 0 {
		return append(out, '.'), nil
	}
	var err error
	for i, entry := range info {
		if i > 0 {
			out = append(out, ';')
		}
		out = append(out, *entry.Key...)
		switch value := entry.Value.(type) {
		case bool:
			// flag entries have no value
		case []interface{}:
			out = append(out, '=')
			for j, element := range value {
				if j > 0 {
					out = append(out, ',')
				}
				if out, err = formatValue(out, element); err != nil {
					return nil, err
				}
			}
		default:
			out = append(out, '=')
			if out, err = formatValue(out, value); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Format outputs a VCF variant line.
func (v *Variant) Format(out []byte) ([]byte, error) {
	out = append(append(out, v.Chrom...), '\t')
	if v.Pos < 0 {
		out = append(out, '.', '\t')
	} else {
		out = append(strconv.AppendInt(out, int64(v.Pos), 10), '\t')
	}
	out = formatStringList(out, v.ID, ';')
	out = append(append(out, v.Ref...), '\t')
	out = formatStringList(out, v.Alt, ',')
	if qual, ok := v.Qual.(float64); ok {
		out = append(strconv.AppendFloat(out, qual, 'f', -1, 64), '\t')
	} else {
		out = append(out, '.', '\t')
	}
	if len(v.Filter) == 0 {
		out = append(out, '.', '\t')
	} else {
		out = formatSymbolList(out, v.Filter, ';')
	}
	out, err := formatInfo(out, v.Info)
	if err != nil {
		return nil, err
	}
	if len(v.GenotypeFormat) > 0 {
		out = append(out, '\t')
		out = formatSymbolList(out, v.GenotypeFormat, ':')
		out[len(out)-1] = '\t'
		for i, genotype := range v.Genotypes {
			if i > 0 {
				out = append(out, '\t')
			}
			out = append(out, genotype.Raw...)
		}
	}
	return append(out, '\n'), nil
}

// The possible file extensions for VCF or BCF files, or gz-compressed VCF files
const (
	VcfExt = ".vcf"
	BcfExt = ".bcf"
	GzExt  = ".gz"
)

// InputFile represents a VCF or BCF file for input.
type InputFile struct {
	rc io.ReadCloser
	*bufio.Reader
	*exec.Cmd
}

// OutputFile represents a VCF or BCF file for output.
type OutputFile struct {
	wc io.WriteCloser
	*bufio.Writer
	*exec.Cmd
}

// Open a VCF file for input.
//
// If the filename extension is .bcf or .gz, use bcftools view for
// input. bcftools must be visible in the directories named by the
// PATH environment variable in that case. Any other extension is
// treated as plain VCF.
func Open(name string) (*InputFile, error) {
	switch filepath.Ext(name) {
	case BcfExt, GzExt:
		if _, err := os.Stat(name); os.IsNotExist(err) {
			return nil, err
		}
		cmd := exec.Command("bcftools", "view", "--threads", strconv.FormatInt(int64(runtime.GOMAXPROCS(0)), 10), name)
		outPipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		if err = cmd.Start(); err != nil {
			return nil, err
		}
		return &InputFile{outPipe, bufio.NewReader(outPipe), cmd}, nil
	default:
		if name == "/dev/stdin" {
			return &InputFile{os.Stdin, bufio.NewReader(os.Stdin), nil}, nil
		}
		file, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		return &InputFile{file, bufio.NewReader(file), nil}, nil
	}
}

// Create a VCF file for output.
//
// If the filename extension is .bcf or .gz, use bcftools view for
// output. bcftools must be visible in the directories named by the
// PATH environment variable in that case. Any other extension is
// treated as plain VCF.
func Create(name string) (*OutputFile, error) {
	switch ext := filepath.Ext(name); ext {
	case BcfExt, GzExt:
		args := []string{"view"}
		if ext == BcfExt {
			args = append(args, "-Ob")
		} else {
			args = append(args, "-Oz")
		}
		args = append(args, "--threads", strconv.FormatInt(int64(runtime.GOMAXPROCS(0)), 10), "-o", name, "-")
		cmd := exec.Command("bcftools", args...)
		inPipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		if err = cmd.Start(); err != nil {
			return nil, err
		}
		return &OutputFile{inPipe, bufio.NewWriter(inPipe), cmd}, nil
	default:
		if name == "/dev/stdout" {
			return &OutputFile{os.Stdout, bufio.NewWriter(os.Stdout), nil}, nil
		}
		file, err := os.Create(name)
		if err != nil {
			return nil, err
		}
		return &OutputFile{file, bufio.NewWriter(file), nil}, nil
	}
}

// Close the VCF input file. If bcftools view is used for input, wait
// for its process to finish.
func (input *InputFile) Close() error {
	if input.rc != os.Stdin {
		if err := input.rc.Close(); err != nil {
			return err
		}
	}
	if input.Cmd != nil {
		return input.Wait()
	}
	return nil
}

// Close the VCF output file. If bcftools view is used for output,
// wait for its process to finish.
func (output *OutputFile) Close() error {
	if err := output.Flush(); err != nil {
		return err
	}
	if output.wc != os.Stdout {
		if err := output.wc.Close(); err != nil {
			return err
		}
	}
	if output.Cmd != nil {
		return output.Wait()
	}
	return nil
}

// ReadVcf reads a complete VCF file into memory, parsing variant
// lines in parallel.
func ReadVcf(name string) (result *Vcf, err error) {
	input, err := Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := input.Close(); err == nil {
			err = nerr
		}
	}()
	hdr, err := ParseHeader(input.Reader)
	if err != nil {
		return nil, err
	}
	vp := hdr.NewVariantParser()
	result = &Vcf{Header: hdr}
	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(input.Reader))
	p.Add(
		pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
			lines := data.([]string)
			variants := make([]*Variant, 0, len(lines))
			for _, line := range lines {
				variant, err := vp.Parse(line)
				if err != nil {
					p.SetErr(err)
					return variants
				}
				variants = append(variants, variant)
			}
			return variants
		})),
		pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
			result.Variants = append(result.Variants, data.([]*Variant)...)
			return data
		})),
	)
	p.Run()
	if err = p.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// WriteVcf writes a complete VCF file. The variants are written in
// slice order.
func WriteVcf(v *Vcf, name string) (err error) {
	output, err := Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := output.Close(); err == nil {
			err = nerr
		}
	}()
	if err = v.Header.Format(output.Writer); err != nil {
		return err
	}
	var buf []byte
	for _, variant := range v.Variants {
		if buf, err = variant.Format(buf[:0]); err != nil {
			return err
		}
		if _, err = output.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
