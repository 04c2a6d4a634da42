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

package asmgen

// relabel runs the three steps spec 4.6 assigns to a relabel pass:
// jump threading, fallthrough removal, then renumbering the label
// table down to only the labels still referenced, in order of first
// appearance. Emit runs this twice so the second pass can thread
// through jumps the first pass's own threading exposed.
func relabel(f *FuncAsm) {
	threadJumps(f)
	removeFallthroughs(f)
	renumberLabels(f)
}

// threadJumps replaces the target of every branch or jump whose
// target is itself an unconditional jump with that jump's own target,
// following the chain to a fixpoint within this call. jr carries no
// Target and is left untouched (spec: "respects register jr").
func threadJumps(f *FuncAsm) {
	for i := range f.Instrs {
		in := &f.Instrs[i]
		if in.Op != OpJump && in.Op != OpBranch {
			continue
		}
		for steps := 0; steps <= len(f.Instrs); steps++ {
			pos := f.Labels[in.Target]
			if pos < 0 || pos >= len(f.Instrs) || pos == i {
				break
			}
			tgt := &f.Instrs[pos]
			if tgt.Op != OpJump || tgt.Target == in.Target {
				break
			}
			in.Target = tgt.Target
		}
	}
}

// removeFallthroughs drops any unconditional jump whose target is the
// instruction immediately following it.
func removeFallthroughs(f *FuncAsm) {
	for i := range f.Instrs {
		in := &f.Instrs[i]
		if in.Op != OpJump {
			continue
		}
		if f.Labels[in.Target] == i+1 {
			*in = EmptyInstr()
		}
	}
}

// renumberLabels rewrites f.Labels to hold only the labels still
// referenced by some Branch or Jump Target, in order of first
// appearance, and renumbers every Target to match.
func renumberLabels(f *FuncAsm) {
	newIndex := make(map[Label]Label)
	var order []Label
	for i := range f.Instrs {
		in := &f.Instrs[i]
		if in.Op != OpJump && in.Op != OpBranch {
			continue
		}
		if _, ok := newIndex[in.Target]; !ok {
			newIndex[in.Target] = Label(len(order))
			order = append(order, in.Target)
		}
	}

	labels := make([]int, len(order))
	for i, old := range order {
		labels[i] = f.Labels[old]
	}

	for i := range f.Instrs {
		in := &f.Instrs[i]
		if in.Op != OpJump && in.Op != OpBranch {
			continue
		}
		in.Target = newIndex[in.Target]
	}

	f.Labels = labels
}
