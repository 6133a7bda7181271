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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/exascience/pargo/pipeline"
	psort "github.com/exascience/pargo/sort"
)

// SitesHeader is the header line that every .sites file starts with.
const SitesHeader = "# varcal sites format version 1.0\n"

// ToSitesFile stores a known-site set in a varcal-defined .sites
// file, so it does not have to be extracted from the full known-sites
// VCF on every run.
func ToSitesFile(s Sites, filename string) (err error) {
	pathname, err := filepath.Abs(filename)
	if err != nil {
		return err
	}
	output, err := os.Create(pathname)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := output.Close(); nerr != nil {
			if err == nil {
				err = nerr
			}
		}
	}()
	if _, err = output.WriteString(SitesHeader); err != nil {
		return err
	}
	for chrom, positions := range s {
		var buf []byte
		for _, pos := range positions {
			buf = append(buf, chrom...)
			buf = append(buf, '\t')
			buf = strconv.AppendInt(buf, int64(pos), 10)
			buf = append(buf, '\n')
		}
		if _, err := output.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// FromSitesFile loads a known-site set from a varcal-defined .sites
// file.
func FromSitesFile(filename string) (s Sites, err error) {
	pathname, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}
	in, err := os.Open(pathname)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := in.Close(); nerr != nil {
			if err == nil {
				err = nerr
			}
		}
	}()
	input := bufio.NewReader(in)
	header, err := input.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if header != SitesHeader {
		return nil, fmt.Errorf("%v is not a .sites file - invalid header", filename)
	}
	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(input))
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		strs := data.([]string)
		partial := make(Sites)
		for _, str := range strs {
			i := 0
			for ; i < len(str); i++ {
				if str[i] == '\t' {
					break
				}
			}
			if i == 0 || i == len(str) {
				p.SetErr(fmt.Errorf("invalid sites line %v", str))
				return partial
			}
			chrom := str[:i]
			value, err := strconv.ParseInt(str[i+1:], 10, 32)
			if err != nil {
				p.SetErr(err)
				return partial
			}
			partial[chrom] = append(partial[chrom], int32(value))
		}
		return partial
	})))
	s = make(Sites)
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		for chrom, positions := range data.(Sites) {
			s[chrom] = append(s[chrom], positions...)
		}
		return data
	})))
	p.Run()
	if err = p.Err(); err != nil {
		return nil, err
	}
	for chrom, positions := range s {
		psort.StableSort(stablePositionSorter(positions))
		s[chrom] = dedup(positions)
	}
	return s, nil
}

// Load loads a known-site set from either a .sites file or a VCF
// file, based on the filename extension. An empty track is an error:
// the recalibration model is critically dependent on being able to
// distinguish known and novel sites.
func Load(name string) (Sites, error) {
	if strings.ToLower(filepath.Ext(name)) == ".sites" {
		s, err := FromSitesFile(name)
		if err != nil {
			return nil, err
		}
		if s.Size() == 0 {
			return nil, fmt.Errorf("known-sites file %v contains no usable sites", name)
		}
		return s, nil
	}
	return FromVcfFile(name)
}
