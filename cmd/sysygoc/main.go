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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sysygo/internal/asmgen"
	"sysygo/internal/asmtext"
	"sysygo/internal/hir"
	"sysygo/internal/mir"
	"sysygo/internal/parser"
	"sysygo/internal/sema"
	"sysygo/internal/symtab"
)

func main() {
	var emitAssembly bool
	var output string

	root := &cobra.Command{
		Use:   "sysygoc INPUT",
		Short: "Compile a SysY source file to RISC-V 32 assembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return compile(args[0], output)
		},
	}
	root.Flags().BoolVarP(&emitAssembly, "S", "S", true, "emit assembly (the only supported mode; accepted for compatibility)")
	root.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// compile runs the whole pipeline (spec ch.6): lex+parse the source,
// check and lower it through HIR and MIR, allocate registers and emit
// assembly, then write the result to output or stdout. Diagnostics
// (diag.Error) and internal invariant panics (xerr) both abort with a
// message on stderr and a non-zero exit, per spec ch.7.
func compile(input, output string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	src, ferr := os.Open(input)
	if ferr != nil {
		return ferr
	}
	defer src.Close()

	p, perr := parser.New(src)
	if perr != nil {
		return perr
	}
	prog, perr := p.ParseProgram()
	if perr != nil {
		return perr
	}

	interner := symtab.New()
	unit, serr := sema.Check(prog, interner)
	if serr != nil {
		return serr
	}

	hcu := hir.Lower(unit)
	hir.FoldConstants(hcu)

	mcu := mir.Lower(hcu)
	mir.Optimize(mcu)

	asmProg := asmgen.Emit(mcu)
	text := asmtext.Format(asmProg, interner)

	if output == "" {
		_, err = fmt.Fprint(os.Stdout, text)
		return err
	}
	return os.WriteFile(output, []byte(text), 0644)
}
