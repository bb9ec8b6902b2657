// dtree.go — compiling rule sets into decision trees.
//
// The compiler turns the left-hand sides of all rules sharing a head symbol
// into one discrimination automaton consumed by the reducer (reduce.go).
// The construction is the classical pattern-matrix one:
//
//   - every rule is padded with fresh jokers to the pivot width (the maximal
//     arity over the set), so all rows share the same columns;
//   - columns are stack positions; specialising a column never removes it,
//     the destructed sub-patterns are appended as new rightmost columns and
//     the reducer mirrors this by appending the scrutinee's arguments to the
//     stack end;
//   - the selected column is the leftmost one holding at least one rigid
//     pattern (constructor, bound variable, or lambda); rows with a variable
//     or joker there join every case and the default;
//   - a matrix with no rigid column emits a Test leaf for its first row and
//     chains the remaining rows through the leaf's default.
//
// Before entering the matrix, each rule is linearised: repeated occurrences
// of a context variable and bracket guards are replaced by fresh match
// positions plus convertibility guards. After linearisation every match
// position is bound by exactly one column, which is what lets a leaf read its
// whole context off the stack.

package dedukti

import (
	"github.com/hashicorp/go-set/v2"
	"github.com/samber/lo"
)

// -----------------------------
// Tree representation
// -----------------------------

type DTreeTag uint8

const (
	DTSwitch DTreeTag = iota
	DTTest
)

type CaseKind uint8

const (
	CaseConst CaseKind = iota
	CaseDB
	CaseLam
)

// CaseShape discriminates a whnf scrutinee: a Const with its applied arity, a
// bound variable index with its applied arity, or a lambda.
type CaseShape struct {
	Kind  CaseKind
	Name  QName // CaseConst
	Idx   int   // CaseDB
	Arity int   // CaseConst, CaseDB
}

func (s CaseShape) extraCols() int {
	if s.Kind == CaseLam {
		return 1
	}
	return s.Arity
}

type DCase struct {
	Shape CaseShape
	Tree  *DTree
}

// ProblemEntry binds one match position: read stack column Col (at
// abstraction depth Depth), solve against the Bound variables (empty for
// first-order positions), store at env position Pos.
type ProblemEntry struct {
	Pos   int
	Col   int
	Depth int
	Bound []int
}

// MatchingProblem is the whole context-building recipe of a Test leaf.
// Syntactic problems carry only zero-arity positions and are solved by plain
// unshifting; otherwise each entry is a Miller sub-problem.
type MatchingProblem struct {
	Syntactic bool
	EnvLen    int
	Entries   []ProblemEntry
}

type GuardKind uint8

const (
	GLinearity GuardKind = iota
	GBracket
)

// Guard constrains a candidate context. Linearity requires env positions I
// and J convertible (fall-through on failure); Bracket requires env position
// I convertible to Expected instantiated with the context (hard error on
// failure). Expected's DB indices name env positions directly.
type Guard struct {
	Kind     GuardKind
	I        int
	J        int
	Expected *Term
}

// DTree is a decision-tree node. Tag selects the meaningful fields:
//
//	DTSwitch: Col, Cases, Def
//	DTTest:   RuleName, HeadArity, Problem, Guards, RHS, Def
//
// HeadArity is the matched rule's own argument count under the head. Rules
// shorter than the pivot are padded with jokers; the walker gives the stack
// entries those jokers matched back to the reduct, so nothing is dropped.
type DTree struct {
	Tag   DTreeTag
	Col   int
	Cases []DCase
	Def   *DTree

	RuleName  QName
	HeadArity int
	Problem   MatchingProblem
	Guards    []Guard
	RHS       *Term
}

// -----------------------------
// Compiler
// -----------------------------

// pSlot marks a linearised pattern variable: Idx is the absolute env
// position, Args the applied bound variables. Internal to the compiler.
const pSlot PatternTag = 100

type colPat struct {
	pat   *Pattern
	depth int
}

type row struct {
	cols   []colPat
	rule   *Rule
	guards []Guard
	envLen int
}

type dtCompiler struct {
	staticity func(QName) Staticity
	jokers    int
}

func (c *dtCompiler) joker() *Pattern {
	c.jokers++
	return PatJoker(-c.jokers)
}

// CompileRules builds the decision tree for a non-empty set of typed rules
// sharing a head symbol. The returned pivot is the stack-column count the
// reducer must collect before walking the tree. staticity, when non-nil, is
// consulted for the inner-arity consistency check on definable symbols.
func CompileRules(rules []*Rule, staticity func(QName) Staticity) (pivot int, tree *DTree, err error) {
	if len(rules) == 0 {
		panic("CompileRules: empty rule set")
	}
	head := rules[0].HeadSym
	for _, r := range rules[1:] {
		if r.HeadSym != head {
			return 0, nil, &HeadMismatchError{Loc: r.Loc, Got: r.HeadSym, Want: head}
		}
	}
	pivot = lo.Max(lo.Map(rules, func(r *Rule, _ int) int { return r.Arity() }))

	c := &dtCompiler{staticity: staticity}
	rows := make([]*row, len(rules))
	for i, r := range rules {
		rw, rerr := c.rowOf(r, pivot)
		if rerr != nil {
			return 0, nil, rerr
		}
		rows[i] = rw
	}
	tree, err = c.compileMatrix(rows)
	return pivot, tree, err
}

// rowOf linearises one rule into a matrix row of the given width.
func (c *dtCompiler) rowOf(r *Rule, width int) (*row, error) {
	n := len(r.Ctx)
	rw := &row{rule: r, envLen: n}
	first := make([]*Pattern, n) // binding occurrence per slot, for arg-list equality

	var lin func(p *Pattern, d int) (*Pattern, error)
	lin = func(p *Pattern, d int) (*Pattern, error) {
		switch p.Tag {
		case PJoker:
			return p, nil
		case PVar:
			slot := ctxSlotOf(n, p.Idx, d)
			if slot < 0 {
				// bound by a pattern lambda: rigid, recurse into args
				args, err := linAll(lin, p.Args, d)
				if err != nil {
					return nil, err
				}
				return &Pattern{Tag: PVar, Name: p.Name, Idx: p.Idx, Args: args}, nil
			}
			args, err := linAll(lin, p.Args, d)
			if err != nil {
				return nil, err
			}
			if first[slot] == nil {
				q := &Pattern{Tag: pSlot, Name: p.Name, Idx: n - 1 - slot, Args: args}
				first[slot] = q
				return q, nil
			}
			// repeated occurrence: fresh position + convertibility guard
			if !sameArgLists(first[slot].Args, args) {
				return nil, &PatternError{Code: NonLinearNonEqArguments, Loc: r.Loc, Var: p.Name}
			}
			pos := rw.envLen
			rw.envLen++
			rw.guards = append(rw.guards, Guard{Kind: GLinearity, I: n - 1 - slot, J: pos})
			return &Pattern{Tag: pSlot, Name: p.Name, Idx: pos, Args: args}, nil
		case PPattern:
			args, err := linAll(lin, p.Args, d)
			if err != nil {
				return nil, err
			}
			return &Pattern{Tag: PPattern, Ref: p.Ref, Args: args}, nil
		case PLambda:
			body, err := lin(p.Body, d+1)
			if err != nil {
				return nil, err
			}
			return &Pattern{Tag: PLambda, Name: p.Name, Body: body}, nil
		case PBracket:
			expected, uerr := Unshift(d, p.Term)
			if uerr != nil {
				return nil, &PatternError{Code: VariableBoundOutsideTheGuard, Loc: r.Loc}
			}
			pos := rw.envLen
			rw.envLen++
			rw.guards = append(rw.guards, Guard{Kind: GBracket, I: pos, Expected: expected})
			return &Pattern{Tag: pSlot, Name: "{}", Idx: pos}, nil
		}
		panic("rowOf: bad pattern tag")
	}

	cols := make([]colPat, 0, width)
	for _, a := range r.Args {
		q, err := lin(a, 0)
		if err != nil {
			return nil, err
		}
		cols = append(cols, colPat{pat: q})
	}
	for len(cols) < width {
		cols = append(cols, colPat{pat: c.joker()})
	}
	rw.cols = cols
	return rw, nil
}

func linAll(lin func(*Pattern, int) (*Pattern, error), ps []*Pattern, d int) ([]*Pattern, error) {
	out := make([]*Pattern, len(ps))
	for i, p := range ps {
		q, err := lin(p, d)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func sameArgLists(a, b []*Pattern) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Tag != PVar || b[i].Tag != PVar || a[i].Idx != b[i].Idx {
			return false
		}
	}
	return true
}

// rigid reports whether the pattern discriminates a switch case.
func rigid(cp colPat) bool {
	switch cp.pat.Tag {
	case PPattern, PLambda:
		return true
	case PVar:
		return true // context slots became pSlot; a surviving PVar is bound
	}
	return false
}

func (c *dtCompiler) compileMatrix(rows []*row) (*DTree, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	width := len(rows[0].cols)

	col := -1
	for j := 0; j < width; j++ {
		if lo.SomeBy(rows, func(r *row) bool { return rigid(r.cols[j]) }) {
			col = j
			break
		}
	}
	if col < 0 {
		def, err := c.compileMatrix(rows[1:])
		if err != nil {
			return nil, err
		}
		return c.leaf(rows[0], def)
	}

	// collect case shapes in first-appearance order, checking inner arities
	var shapes []CaseShape
	seen := map[CaseShape]bool{}
	for _, r := range rows {
		cp := r.cols[col]
		if !rigid(cp) {
			continue
		}
		s := shapeOf(cp)
		if s.Kind == CaseConst && c.staticity != nil && c.staticity(s.Name) == Definable {
			for prev := range seen {
				if prev.Kind == CaseConst && prev.Name == s.Name && prev.Arity != s.Arity {
					return nil, &ArityInnerMismatchError{Loc: r.rule.Loc, Name: s.Name, Arity1: prev.Arity, Arity2: s.Arity}
				}
			}
		}
		if !seen[s] {
			seen[s] = true
			shapes = append(shapes, s)
		}
	}

	cases := make([]DCase, 0, len(shapes))
	for _, s := range shapes {
		var sub []*row
		for _, r := range rows {
			cp := r.cols[col]
			switch {
			case rigid(cp) && shapeOf(cp) == s:
				sub = append(sub, specialise(r, col, s))
			case !rigid(cp):
				sub = append(sub, padRow(c, r, s.extraCols()))
			}
		}
		t, err := c.compileMatrix(sub)
		if err != nil {
			return nil, err
		}
		cases = append(cases, DCase{Shape: s, Tree: t})
	}

	var defRows []*row
	for _, r := range rows {
		if !rigid(r.cols[col]) {
			defRows = append(defRows, r)
		}
	}
	def, err := c.compileMatrix(defRows)
	if err != nil {
		return nil, err
	}
	return &DTree{Tag: DTSwitch, Col: col, Cases: cases, Def: def}, nil
}

func shapeOf(cp colPat) CaseShape {
	switch cp.pat.Tag {
	case PPattern:
		return CaseShape{Kind: CaseConst, Name: cp.pat.Ref, Arity: len(cp.pat.Args)}
	case PVar:
		return CaseShape{Kind: CaseDB, Idx: cp.pat.Idx, Arity: len(cp.pat.Args)}
	case PLambda:
		return CaseShape{Kind: CaseLam}
	}
	panic("shapeOf: non-rigid pattern")
}

// specialise consumes the matched column of r and appends the destructed
// sub-patterns as new rightmost columns.
func specialise(r *row, col int, s CaseShape) *row {
	cp := r.cols[col]
	cols := make([]colPat, len(r.cols), len(r.cols)+s.extraCols())
	copy(cols, r.cols)
	cols[col] = colPat{pat: PatJoker(-1), depth: cp.depth}
	if s.Kind == CaseLam {
		cols = append(cols, colPat{pat: cp.pat.Body, depth: cp.depth + 1})
	} else {
		for _, a := range cp.pat.Args {
			cols = append(cols, colPat{pat: a, depth: cp.depth})
		}
	}
	return &row{cols: cols, rule: r.rule, guards: r.guards, envLen: r.envLen}
}

// padRow keeps a variable row alive inside a specialised case by padding the
// new columns with jokers.
func padRow(c *dtCompiler, r *row, extra int) *row {
	cols := make([]colPat, len(r.cols), len(r.cols)+extra)
	copy(cols, r.cols)
	for i := 0; i < extra; i++ {
		cols = append(cols, colPat{pat: c.joker()})
	}
	return &row{cols: cols, rule: r.rule, guards: r.guards, envLen: r.envLen}
}

// leaf emits the Test node for a fully variable row.
func (c *dtCompiler) leaf(r *row, def *DTree) (*DTree, error) {
	var entries []ProblemEntry
	covered := make([]bool, r.envLen)
	for j, cp := range r.cols {
		p := cp.pat
		if p.Tag != pSlot {
			continue
		}
		bound, err := boundArgIndices(p, cp.depth, r.rule.Loc)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ProblemEntry{Pos: p.Idx, Col: j, Depth: cp.depth, Bound: bound})
		covered[p.Idx] = true
	}
	for _, ok := range covered {
		if !ok {
			return nil, &PatternError{Code: UnboundVariable, Loc: r.rule.Loc}
		}
	}
	syntactic := lo.EveryBy(entries, func(e ProblemEntry) bool { return len(e.Bound) == 0 })
	return &DTree{
		Tag:       DTTest,
		RuleName:  r.rule.Name,
		HeadArity: r.rule.Arity(),
		Problem:   MatchingProblem{Syntactic: syntactic, EnvLen: r.envLen, Entries: entries},
		Guards:    r.guards,
		RHS:       r.rule.RHS,
		Def:       def,
	}, nil
}

// boundArgIndices validates the Miller restriction on a variable's applied
// arguments: plain bound variables, pairwise distinct.
func boundArgIndices(p *Pattern, depth int, loc Loc) ([]int, error) {
	if len(p.Args) == 0 {
		return nil, nil
	}
	idxs := make([]int, len(p.Args))
	for i, a := range p.Args {
		if a.Tag != PVar || len(a.Args) != 0 || a.Idx >= depth {
			return nil, &PatternError{Code: BoundVariableExpected, Loc: loc, Var: p.Name}
		}
		idxs[i] = a.Idx
	}
	if set.From(idxs).Size() != len(idxs) {
		return nil, &PatternError{Code: DistinctBoundVariablesExpected, Loc: loc, Var: p.Name}
	}
	return idxs, nil
}
