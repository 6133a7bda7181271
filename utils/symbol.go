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

package utils

import (
	"github.com/exascience/pargo/sync"

	"github.com/vqlab/varcal/internal"
)

// A Symbol is a unique pointer to a string. Symbols for equal strings
// are pointer-identical, so they can be compared with == instead of
// string comparison. VCF filter names and INFO keys are stored as
// symbols.
type Symbol *string

type symbolName string

func (s symbolName) Hash() uint64 {
	return internal.StringHash(string(s))
}

var symbolTable = sync.NewMap(0)

// Intern returns the Symbol for the given string. For two strings s1
// and s2, Intern(s1) == Intern(s2) if and only if s1 == s2, and
// *Intern(s) == s always holds.
//
// It is safe for multiple goroutines to call Intern concurrently.
func Intern(s string) Symbol {
	entry, _ := symbolTable.LoadOrStore(symbolName(s), Symbol(&s))
	return entry.(Symbol)
}
