// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package symtab interns identifiers into a single append-only table
// (spec 3.1). The prelude of built-in function names occupies the
// first reserved slots so that lookups of getint/putint/etc. always
// resolve to the same Symbol regardless of compilation order.
package symtab

import "sysygo/internal/xerr"

type Symbol int

const NoSymbol Symbol = -1

// Prelude holds the fixed-arity external functions spec ch.6 names.
var Prelude = []struct {
	Name  string
	Arity int
	// HasResult is false for the pure-effect calls (putint, putch,
	// putarray, _sysy_starttime, _sysy_stoptime).
	HasResult bool
}{
	{"getint", 0, true},
	{"getch", 0, true},
	{"getarray", 1, true}, // int*
	{"putint", 1, false},
	{"putch", 1, false},
	{"putarray", 2, false}, // len, int*
	{"_sysy_starttime", 0, false},
	{"_sysy_stoptime", 0, false},
}

type Interner struct {
	names []string
	ids   map[string]Symbol
}

// New creates an interner with the prelude pre-populated so prelude
// symbols always carry stable, low-numbered ids.
func New() *Interner {
	in := &Interner{ids: make(map[string]Symbol)}
	for _, p := range Prelude {
		in.Intern(p.Name)
	}
	return in
}

func (in *Interner) Intern(name string) Symbol {
	if id, ok := in.ids[name]; ok {
		return id
	}
	id := Symbol(len(in.names))
	in.names = append(in.names, name)
	in.ids[name] = id
	return id
}

func (in *Interner) Lookup(name string) (Symbol, bool) {
	id, ok := in.ids[name]
	return id, ok
}

func (in *Interner) Name(sym Symbol) string {
	xerr.Assert(int(sym) >= 0 && int(sym) < len(in.names), "symbol out of range")
	return in.names[sym]
}

func (in *Interner) IsPrelude(sym Symbol) bool {
	return int(sym) < len(Prelude)
}

func (in *Interner) PreludeArity(sym Symbol) (int, bool) {
	if !in.IsPrelude(sym) {
		return 0, false
	}
	return Prelude[sym].Arity, true
}
