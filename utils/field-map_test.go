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

import "testing"

func TestFieldMap(t *testing.T) {
	a, b, c := Intern("A"), Intern("B"), Intern("C")
	var m FieldMap
	if _, ok := m.Get(a); ok {
		t.Error("FieldMap empty Get failed")
	}
	m.Set(a, 1)
	m.Set(b, 2)
	m.Set(c, 3)
	if value, ok := m.Get(b); !ok || value.(int) != 2 {
		t.Error("FieldMap Get failed")
	}
	m.Set(b, 4)
	if len(m) != 3 {
		t.Error("FieldMap Set overwrite failed")
	}
	if value, _ := m.Get(b); value.(int) != 4 {
		t.Error("FieldMap overwrite value failed")
	}
	// insertion order is preserved
	if m[0].Key != a || m[1].Key != b || m[2].Key != c {
		t.Error("FieldMap order failed")
	}
	m, ok := m.Delete(b)
	if !ok || len(m) != 2 {
		t.Error("FieldMap Delete failed")
	}
	if _, ok := m.Get(b); ok {
		t.Error("FieldMap Delete lookup failed")
	}
	if _, ok := m.Delete(b); ok {
		t.Error("FieldMap double Delete failed")
	}
}

func TestIntern(t *testing.T) {
	if Intern("QD") != Intern("QD") {
		t.Error("Intern identity failed")
	}
	if *Intern("QD") != "QD" {
		t.Error("Intern value failed")
	}
}
