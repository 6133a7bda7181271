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

// A stringScanner scans tab- and semicolon-separated fields in lines
// of VCF files.
//
// The zero stringScanner is valid and empty.
type stringScanner struct {
	index int
	data  string
}

// reset initializes the scanner with the given string.
func (sc *stringScanner) reset(s string) {
	sc.index = 0
	sc.data = s
}

// len returns the number of bytes that still need to be scanned.
func (sc *stringScanner) len() int {
	return len(sc.data) - sc.index
}

// until returns the substring up to the next occurrence of c, and
// whether c was found. The separator is consumed.
func (sc *stringScanner) until(c byte) (s string, found bool) {
	start := sc.index
	for end := sc.index; end < len(sc.data); end++ {
		if sc.data[end] == c {
			sc.index = end + 1
			return sc.data[start:end], true
		}
	}
	sc.index = len(sc.data)
	return sc.data[start:], false
}

// untilAny returns the substring up to the next occurrence of any of
// the given bytes. The separator is not consumed.
func (sc *stringScanner) untilAny(bytes string) string {
	start := sc.index
	for end := sc.index; end < len(sc.data); end++ {
		c := sc.data[end]
		for i := 0; i < len(bytes); i++ {
			if c == bytes[i] {
				sc.index = end
				return sc.data[start:end]
			}
		}
	}
	sc.index = len(sc.data)
	return sc.data[start:]
}

// accept consumes c if it is the next byte, and returns whether it
// did.
func (sc *stringScanner) accept(c byte) bool {
	if sc.index < len(sc.data) && sc.data[sc.index] == c {
		sc.index++
		return true
	}
	return false
}
