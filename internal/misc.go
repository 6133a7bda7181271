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

package internal

import (
	"math/rand"
)

// StringHash returns a hash value for the given string value.
func StringHash(s string) (hash uint64) {
	// DJBX33A
	hash = 5381
	for _, b := range s {
		hash = ((hash << 5) + hash) + uint64(b)
	}
	return
}

// Rand is the random number generator used for model fitting. Model
// training seeds one explicitly so that fits are reproducible.
type Rand = rand.Rand

// NewRand returns a random number generator for the given seed.
func NewRand(seed int64) *Rand {
	return rand.New(rand.NewSource(seed))
}
