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

// A FieldMapEntry is an entry in a FieldMap.
type FieldMapEntry struct {
	Key   Symbol
	Value interface{}
}

// A FieldMap maps symbols to values while preserving insertion order,
// so that VCF INFO and genotype fields can be written back in the
// order they were read. For the handful of entries in a typical VCF
// field, a linear scan is faster than a native map.
type FieldMap []FieldMapEntry

// Get returns the value for the given key and true if the key is
// present, otherwise nil and false.
func (m FieldMap) Get(key Symbol) (interface{}, bool) {
	for _, entry := range m {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return nil, false
}

// Set associates the given value with the given key, either by
// overwriting the value of an existing entry, or by appending a new
// entry at the end.
func (m *FieldMap) Set(key Symbol, value interface{}) {
	for index := range *m {
		if (*m)[index].Key == key {
			(*m)[index].Value = value
			return
		}
	}
	*m = append(*m, FieldMapEntry{key, value})
}

// Delete returns a FieldMap with the entry for the given key removed,
// and whether an entry was removed.
func (m FieldMap) Delete(key Symbol) (FieldMap, bool) {
	for index, entry := range m {
		if entry.Key == key {
			return append(m[:index], m[index+1:]...), true
		}
	}
	return m, false
}
