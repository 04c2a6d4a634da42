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

package regalloc

import (
	"sort"

	"sysygo/internal/mir"
)

// rewriteSpills lowers every local in victims out of the candidate
// pool entirely, either by inline rematerialization (re-emitting the
// local's defining instruction at each use site) or by a genuine
// memory spill through a synthetic one-word array slot appended to
// fn.Arrays. Every fresh local it creates re-enters the candidate pool
// on the next round's rebuilt graph (spec 4.5's iterate-to-fixpoint
// spill handling).
func rewriteSpills(fn *mir.Func, g *graph, victims []mir.Local) {
	for _, v := range victims {
		// Re-derive def/use positions fresh for every victim: rewriting
		// one victim splices new statements into fn.Stmts, invalidating
		// every position g (and any earlier victim's ctx) was built from.
		ctx := mir.Prepare(fn)
		n := g.nodes[v]
		if n.remat != nil {
			rematerialize(fn, ctx, v, n)
		} else {
			spillToMemory(fn, ctx, v)
		}
	}
}

func freshLocal(fn *mir.Func) mir.Local {
	l := mir.Local(fn.NumPhis)
	fn.NumPhis++
	return l
}

// placeKind says where a spilled range's uses land relative to the
// loop (if any) their definition lives in.
type placeKind int

const (
	// placeDirect: the use sits at the same loop nesting as the def;
	// reload right before that one use, same as a loop-free spill.
	placeDirect placeKind = iota
	// placePre: the use is nested one or more loops deeper than the
	// def. Every use sharing the same immediate child loop of the
	// def's loop becomes one sub-range served by a single reload
	// hoisted to that child loop's preheader (spec 4.5.6-7).
	placePre
	// placePost: the def lives inside a loop the use has already
	// exited. Every such use sharing the same immediate child loop
	// (of the use's own loop) that contains the def becomes one
	// sub-range served by a single reload placed at that child loop's
	// tail, right where control resumes after the loop.
	placePost
)

type placement struct {
	kind placeKind
	loop int // child loop index, meaningful for placePre/placePost only
}

type useGroup struct {
	place placement
	sites []mir.UseSite
}

// classify locates usePos relative to defLoop in the loop tree: equal
// nesting reloads directly, a use strictly nested inside defLoop
// belongs to the pre-header sub-range of the child loop leading to it,
// and a use outside a loop the def is nested in belongs to the
// tail sub-range of the child (of the use's own loop) that contains
// the def. Anything else (sibling loops unreachable from one another
// without crossing their common ancestor) falls back to a direct
// reload, which is always sound, just not hoisted.
func classify(ctx *mir.FuncContext, defLoop, usePos int) placement {
	useLoop := ctx.LoopOf[usePos]
	if useLoop == defLoop {
		return placement{kind: placeDirect}
	}
	if loopIsAncestor(ctx, defLoop, useLoop) {
		return placement{kind: placePre, loop: loopChildContaining(ctx, useLoop, defLoop)}
	}
	if loopIsAncestor(ctx, useLoop, defLoop) {
		return placement{kind: placePost, loop: loopChildContaining(ctx, defLoop, useLoop)}
	}
	return placement{kind: placeDirect}
}

// loopIsAncestor reports whether ancestor is loop itself or encloses
// it; -1 (the function root, outside every loop) encloses everything.
func loopIsAncestor(ctx *mir.FuncContext, ancestor, loop int) bool {
	if ancestor == -1 {
		return true
	}
	for loop != -1 {
		if loop == ancestor {
			return true
		}
		loop = ctx.Loops[loop].Parent
	}
	return false
}

// loopChildContaining walks up from descendant to find ancestor's
// immediate child on the path down to descendant.
func loopChildContaining(ctx *mir.FuncContext, descendant, ancestor int) int {
	child := descendant
	for child != -1 && ctx.Loops[child].Parent != ancestor {
		child = ctx.Loops[child].Parent
	}
	return child
}

// loopTail is the statement position immediately after l's body, i.e.
// where control resumes once the loop is left (the position the
// loop's own tail label targets).
func loopTail(l *mir.Loop) int {
	tail := -1
	for p := range l.Body {
		if p > tail {
			tail = p
		}
	}
	return tail + 1
}

// groupUseSites buckets v's use sites per spec 4.5.6: a direct use
// keeps its own singleton group (one reload per use, as before
// loop-boundary splitting existed); every use sharing a placePre or
// placePost bucket becomes one new sub-range served by a single
// shared reload.
func groupUseSites(ctx *mir.FuncContext, defLoop int, sites []mir.UseSite) []useGroup {
	var order []placement
	byPlace := map[placement][]mir.UseSite{}
	for _, s := range sites {
		p := classify(ctx, defLoop, s.Pos)
		if _, ok := byPlace[p]; !ok {
			order = append(order, p)
		}
		byPlace[p] = append(byPlace[p], s)
	}

	var groups []useGroup
	for _, p := range order {
		if p.kind == placeDirect {
			for _, s := range byPlace[p] {
				groups = append(groups, useGroup{place: p, sites: []mir.UseSite{s}})
			}
			continue
		}
		groups = append(groups, useGroup{place: p, sites: byPlace[p]})
	}
	return groups
}

// rematerialize deletes v's single defining statement and re-emits a
// copy of it, producing a fresh local, at one insertion point per
// sub-range: directly before a use at the def's own loop nesting, or
// once at a shared preheader/tail for a whole bucket of uses split
// across a loop boundary (spec 4.5.6-7). The remat snapshot's operands
// were all defined before v itself, so recomputing it at a loop's
// preheader or tail is always at least as safe as recomputing it at
// the original use.
func rematerialize(fn *mir.Func, ctx *mir.FuncContext, v mir.Local, n *node) {
	defPos := ctx.DefOf[v]
	defLoop := ctx.LoopOf[defPos]
	fn.Stmts[defPos] = mir.EmptyStmt()

	jobs := reloadJobsFor(ctx, defLoop, ctx.UsesOf[v])
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].pos > jobs[j].pos })

	for i := range jobs {
		j := &jobs[i]
		fresh := freshLocal(fn)
		inst := *n.remat
		inst.Dst = fresh
		mir.InsertAt(fn, j.pos, []mir.Stmt{inst})
		rewriteJobSites(fn, j, v, fresh, 1)
		shiftTrailingJobs(jobs[i+1:], j.pos, 1)
	}
}

// spillToMemory gives v a private one-word slot in a synthetic spill
// array, stores it there immediately after its definition (or, for an
// argument local with no defining statement, immediately after
// entry), and reloads it at one insertion point per sub-range: a
// direct use at the def's own loop nesting reloads right before
// itself; a bucket of uses split across a loop boundary shares a
// single reload hoisted to that loop's preheader (entering) or placed
// at its tail (exiting), per spec 4.5.6-7.
//
// The store itself always stays immediately after the def. Deferring
// it to a loop's tail would shrink the number of stores but would
// keep v live across the whole loop to do so, undoing the very
// register-pressure reduction spilling exists to provide; the memory
// slot already holds the correct value the moment the loop exits; no
// store needs hoisting.
func spillToMemory(fn *mir.Func, ctx *mir.FuncContext, v mir.Local) {
	slot := len(fn.Arrays)
	off := 0
	if slot > 0 {
		off = fn.ArrayOffs[slot-1] + fn.Arrays[slot-1].ElemCount*4
	}
	fn.Arrays = append(fn.Arrays, mir.ArraySlot{ElemCount: 1, ElemSize: 4})
	fn.ArrayOffs = append(fn.ArrayOffs, off)

	defPos, hasDef := ctx.DefOf[v]
	storeAt := 0
	if hasDef {
		storeAt = defPos
	}
	defLoop := -1
	if hasDef {
		defLoop = ctx.LoopOf[defPos]
	}

	addrTemp := freshLocal(fn)
	store := []mir.Stmt{
		mir.ArrayAddrStmt(addrTemp, slot, 0),
		mir.StoreStmt(v, addrTemp, 0),
	}
	insertPos := storeAt + 1
	mir.InsertAt(fn, insertPos, store)
	storeShift := len(store)
	adjusted := func(pos int) int {
		if pos >= insertPos {
			return pos + storeShift
		}
		return pos
	}

	// Classify and resolve loop placement in the original (pre-store)
	// coordinate space that ctx was built from; only once every job's
	// position and member sites are final do they need shifting past
	// the store just spliced in.
	jobs := reloadJobsFor(ctx, defLoop, ctx.UsesOf[v])
	for i := range jobs {
		jobs[i].pos = adjusted(jobs[i].pos)
		for s := range jobs[i].sites {
			jobs[i].sites[s] = adjusted(jobs[i].sites[s])
		}
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].pos > jobs[j].pos })

	for i := range jobs {
		j := &jobs[i]
		addr := freshLocal(fn)
		fresh := freshLocal(fn)
		reload := []mir.Stmt{
			mir.ArrayAddrStmt(addr, slot, 0),
			mir.LoadStmt(fresh, addr, 0),
		}
		mir.InsertAt(fn, j.pos, reload)
		rewriteJobSites(fn, j, v, fresh, len(reload))
		shiftTrailingJobs(jobs[i+1:], j.pos, len(reload))
	}
}

// reloadJob is one insertion point shared by every use site in sites:
// a single reload/remat instruction goes in at pos, and every site in
// sites then reads the fresh local it produces.
type reloadJob struct {
	pos   int
	sites []int
}

// reloadJobsFor groups uses into sub-ranges via groupUseSites and
// resolves each group's loop-relative placement (header or tail) into
// a concrete statement position, in ctx's own (unshifted) coordinate
// space. Callers that splice other statements in first (e.g.
// spillToMemory's store) must shift every returned position
// themselves before using it.
func reloadJobsFor(ctx *mir.FuncContext, defLoop int, sites []mir.UseSite) []reloadJob {
	var jobs []reloadJob
	for _, grp := range groupUseSites(ctx, defLoop, sites) {
		var pos int
		switch grp.place.kind {
		case placePre:
			pos = ctx.Loops[grp.place.loop].Header
		case placePost:
			pos = loopTail(ctx.Loops[grp.place.loop])
		default:
			pos = grp.sites[0].Pos
		}
		sitePositions := make([]int, len(grp.sites))
		for i, s := range grp.sites {
			sitePositions[i] = s.Pos
		}
		jobs = append(jobs, reloadJob{pos: pos, sites: sitePositions})
	}
	return jobs
}

// rewriteJobSites rewrites every use site belonging to j to read fresh
// instead of old, once j's own reload/remat has just been inserted (of
// length instrLen) at j.pos: a site at or after j.pos shifted forward
// by that insertion.
func rewriteJobSites(fn *mir.Func, j *reloadJob, old, fresh mir.Local, instrLen int) {
	for _, sitePos := range j.sites {
		target := sitePos
		if sitePos >= j.pos {
			target += instrLen
		}
		rewriteOperand(&fn.Stmts[target], old, fresh)
	}
}

// shiftTrailingJobs mirrors, on not-yet-processed jobs, the position
// shift an insertion of instrLen statements at pos just caused in
// fn.Stmts: both a job's own insertion point and any of its member
// sites at or after pos move forward by instrLen.
func shiftTrailingJobs(rest []reloadJob, pos, instrLen int) {
	for i := range rest {
		if rest[i].pos >= pos {
			rest[i].pos += instrLen
		}
		for s := range rest[i].sites {
			if rest[i].sites[s] >= pos {
				rest[i].sites[s] += instrLen
			}
		}
	}
}

// rewriteOperand replaces every occurrence of old in s's use slots
// with fresh, mirroring mir's internal rewriteUses but for a single
// substitution performed from outside the package.
func rewriteOperand(s *mir.Stmt, old, fresh mir.Local) {
	switch s.Kind {
	case mir.KBinary, mir.KBranch, mir.KStore:
		if s.S1 == old {
			s.S1 = fresh
		}
		if s.S2 == old {
			s.S2 = fresh
		}
	case mir.KBinaryImm, mir.KUnary, mir.KLoad:
		if s.S1 == old {
			s.S1 = fresh
		}
	case mir.KCall:
		for i, a := range s.Args {
			if a == old {
				s.Args[i] = fresh
			}
		}
	case mir.KReturn:
		if s.S1 == old {
			s.S1 = fresh
		}
	}
}
