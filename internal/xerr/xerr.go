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

// Package xerr holds the compiler's internal invariant checks. These
// panic rather than return an error because they indicate a bug in
// the compiler itself, never a malformed input program — malformed
// input is reported through package diag instead.
package xerr

import "fmt"

func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

func Fatal(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

func Unimplement(what string) {
	panic(fmt.Sprintf("not implemented: %s", what))
}

func ShouldNotReachHere() {
	panic("should not reach here")
}

func Abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Align16 rounds n up to the nearest multiple of 16, used for frame sizes.
func Align16(n int) int {
	return (n + 15) &^ 15
}

// Align4 rounds n up to the nearest multiple of 4 (one RISC-V word).
func Align4(n int) int {
	return (n + 3) &^ 3
}
