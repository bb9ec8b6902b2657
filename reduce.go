// reduce.go — the abstract machine: weak-head reduction, rewriting, and the
// normal forms and convertibility test built on top of it.
//
// A machine state {env, term, stack} is a suspended closure: env binds the
// outer De Bruijn indices of term to lazy cells, stack holds the arguments
// the closure is applied to, each itself a suspended state. termOfState
// reifies a state back into a term by parallel substitution; cells memoise
// that reification, which is what keeps call-by-need rewriting from blowing
// up exponentially.
//
// The machine has six transitions (see stateWhnf); γ-steps consult the head
// constant's decision tree in the signature and hand the collected stack
// prefix to gammaRewrite, the tree walker. Reduction options — β on/off,
// rule selector, step limit, strategy, logger — travel in the reducer record
// itself rather than process globals, so guard evaluation re-entering the
// machine sees exactly the flags of the enclosing call.

package dedukti

// -----------------------------
// Lazy cells & machine states
// -----------------------------

// lazy memoises the reification of a state. Forcing is idempotent; the cell
// drops its producer once forced.
type lazy struct {
	st *state
	tm *Term
}

func lazyOfTerm(t *Term) *lazy   { return &lazy{tm: t} }
func lazyOfState(s *state) *lazy { return &lazy{st: s} }

func (l *lazy) force() *Term {
	if l.tm == nil {
		l.tm = termOfState(l.st)
		l.st = nil
	}
	return l.tm
}

type state struct {
	env   []*lazy
	term  *Term
	stack []*state
}

func stateOfTerm(t *Term) *state { return &state{term: t} }

// termOfState substitutes env into term and re-applies the stack.
func termOfState(s *state) *Term {
	t := s.term
	if len(s.env) > 0 {
		t = psubst(t, 0, len(s.env), func(i int) *Term { return s.env[i].force() })
	}
	if len(s.stack) > 0 {
		args := make([]*Term, len(s.stack))
		for i, p := range s.stack {
			args[i] = termOfState(p)
		}
		t = AppL(t, args)
	}
	return t
}

// -----------------------------
// Configuration
// -----------------------------

type Target uint8

const (
	TargetWhnf Target = iota
	TargetSnf
)

type Strategy uint8

const (
	ByName Strategy = iota
	ByValue
	ByStrongValue
)

// ReductionConfig drives a single reduction query.
//
//	Selector:  only rules whose name satisfies it may fire (nil = all).
//	Beta:      β steps enabled.
//	Target:    weak-head or strong normal form.
//	Strategy:  ByName pushes arguments unevaluated; ByValue and ByStrongValue
//	           reduce each argument to whnf before it is pushed.
//	StepLimit: maximal number of β+γ firings; negative means unbounded. When
//	           the budget runs out the current state is returned as a partial
//	           normal form.
//	Logger:    invoked on each γ firing with the sub-term position, the rule
//	           name, and the (lazily reified) reduct.
type ReductionConfig struct {
	Selector  func(QName) bool
	Beta      bool
	Target    Target
	Strategy  Strategy
	StepLimit int
	Logger    func(pos []int, rule QName, reduct func() *Term)
}

func DefaultReductionConfig() ReductionConfig {
	return ReductionConfig{Beta: true, Target: TargetSnf, StepLimit: -1}
}

type reducer struct {
	sg    *Signature
	cfg   ReductionConfig
	steps int
	pos   []int // current sub-term position, for the logger
}

func newReducer(sg *Signature, cfg ReductionConfig) *reducer {
	return &reducer{sg: sg, cfg: cfg, steps: cfg.StepLimit}
}

// countStep consumes one unit of the step budget; false means exhausted.
func (rd *reducer) countStep() bool {
	if rd.steps == 0 {
		return false
	}
	if rd.steps > 0 {
		rd.steps--
	}
	return true
}

// -----------------------------
// The state machine
// -----------------------------

// stateWhnf drives s to weak-head normal form. The six transitions:
//
//  1. sorts, products and un-applied lambdas are terminal;
//  2. a bound DB looks its value up in env and restarts on it;
//  3. a DB beyond env is a free variable, re-indexed past the env;
//  4. an applied lambda β-consumes the top of the stack (gated by cfg.Beta);
//  5. an application unloads its arguments onto the stack;
//  6. a constant with a compiled tree and enough stack γ-rewrites via
//     gammaRewrite and restarts on the reduct.
func (rd *reducer) stateWhnf(s *state) *state {
	for {
		t := s.term
		switch t.Tag {
		case TType, TKind, TPi, tMeta:
			return s
		case TLam:
			if len(s.stack) == 0 || !rd.cfg.Beta {
				return s
			}
			if !rd.countStep() {
				return s
			}
			env := make([]*lazy, 0, len(s.env)+1)
			env = append(env, lazyOfState(s.stack[0]))
			env = append(env, s.env...)
			s = &state{env: env, term: t.Body, stack: s.stack[1:]}
		case TDB:
			if t.Idx < len(s.env) {
				s = &state{term: s.env[t.Idx].force(), stack: s.stack}
			} else {
				return &state{term: DB(t.Name, t.Idx-len(s.env)), stack: s.stack}
			}
		case TApp:
			args := make([]*state, 0, len(t.Args)+len(s.stack))
			for _, a := range t.Args {
				as := &state{env: s.env, term: a}
				if rd.cfg.Strategy != ByName {
					as = rd.stateWhnf(as)
				}
				args = append(args, as)
			}
			args = append(args, s.stack...)
			s = &state{env: s.env, term: t.Head, stack: args}
		case TConst:
			pivot, tree, ok := rd.lookupTree(t.Ref)
			if !ok || pivot > len(s.stack) {
				return s
			}
			res := rd.gammaRewrite(s.stack[:pivot:pivot], tree)
			if res == nil {
				return s
			}
			if !rd.countStep() {
				return s
			}
			// a rule shorter than the pivot leaves its padded columns on the
			// stack for the reduct
			s = &state{env: res.env, term: res.rhs, stack: s.stack[res.arity:]}
		default:
			panic("stateWhnf: bad term tag")
		}
	}
}

func (rd *reducer) lookupTree(q QName) (int, *DTree, bool) {
	if rd.cfg.Selector != nil {
		return rd.sg.GetDTreeFiltered(q, rd.cfg.Selector)
	}
	return rd.sg.GetDTree(q)
}

// -----------------------------
// The tree walker
// -----------------------------

// gammaResult is a fired rule: the RHS with its matched context, plus the
// rule's own head arity (≤ pivot).
type gammaResult struct {
	env   []*lazy
	rhs   *Term
	arity int
}

// gammaRewrite matches the stack prefix against the tree, returning nil when
// no rule fires. A violated bracket guard panics with *GuardError —
// rewriting may not skip it.
func (rd *reducer) gammaRewrite(stack []*state, tree *DTree) *gammaResult {
	if tree == nil {
		return nil
	}
	switch tree.Tag {
	case DTSwitch:
		st := rd.stateWhnf(stack[tree.Col])
		stack[tree.Col] = st
		shape, extra, ok := discriminate(st)
		if !ok {
			return rd.gammaRewrite(stack, tree.Def)
		}
		for _, c := range tree.Cases {
			if c.Shape == shape {
				ext := append(stack[:len(stack):len(stack)], extra...)
				return rd.gammaRewrite(ext, c.Tree)
			}
		}
		return rd.gammaRewrite(stack, tree.Def)

	case DTTest:
		env, ok := rd.solveProblem(stack, tree.Problem)
		if ok && rd.checkGuards(env, tree.Guards) {
			if rd.cfg.Logger != nil && rd.steps != 0 {
				pos := append([]int(nil), rd.pos...)
				res := &state{env: env, term: tree.RHS}
				rd.cfg.Logger(pos, tree.RuleName, func() *Term { return termOfState(res) })
			}
			return &gammaResult{env: env, rhs: tree.RHS, arity: tree.HeadArity}
		}
		return rd.gammaRewrite(stack, tree.Def)
	}
	panic("gammaRewrite: bad tree tag")
}

// discriminate reads the case shape of a whnf state. Lambdas only match
// un-applied (β may be disabled, leaving a lambda with a stack).
func discriminate(st *state) (CaseShape, []*state, bool) {
	switch st.term.Tag {
	case TConst:
		return CaseShape{Kind: CaseConst, Name: st.term.Ref, Arity: len(st.stack)}, st.stack, true
	case TDB:
		idx := st.term.Idx // free: stateWhnf already re-indexed past the env
		return CaseShape{Kind: CaseDB, Idx: idx, Arity: len(st.stack)}, st.stack, true
	case TLam:
		if len(st.stack) != 0 {
			return CaseShape{}, nil, false
		}
		tm := termOfState(st)
		return CaseShape{Kind: CaseLam}, []*state{stateOfTerm(tm.Body)}, true
	}
	return CaseShape{}, nil, false
}

// solveProblem builds the candidate context. Each position is solved
// directly first; on an unshift/Miller failure the stack term is strongly
// normalised and retried once, a second failure failing the whole leaf.
func (rd *reducer) solveProblem(stack []*state, p MatchingProblem) ([]*lazy, bool) {
	env := make([]*lazy, p.EnvLen)
	for _, e := range p.Entries {
		t := termOfState(stack[e.Col])
		u, ok := rd.solveEntry(e, t)
		if !ok {
			u, ok = rd.solveEntry(e, rd.snf(t))
			if !ok {
				return nil, false
			}
		}
		env[e.Pos] = lazyOfTerm(u)
	}
	return env, true
}

func (rd *reducer) solveEntry(e ProblemEntry, t *Term) (u *Term, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			switch r.(type) {
			case unshiftSig, notUnifiableSig:
				u, ok = nil, false
				return
			}
			panic(r)
		}
	}()
	if len(e.Bound) == 0 {
		return unshift(e.Depth, t), true
	}
	return solveMiller(e.Depth, e.Bound, t), true
}

func (rd *reducer) checkGuards(env []*lazy, guards []Guard) bool {
	for _, g := range guards {
		switch g.Kind {
		case GLinearity:
			if !rd.convertible(env[g.I].force(), env[g.J].force()) {
				return false
			}
		case GBracket:
			expected := g.Expected
			if len(env) > 0 {
				expected = psubst(expected, 0, len(env), func(i int) *Term { return env[i].force() })
			}
			found := env[g.I].force()
			if !rd.convertible(found, expected) {
				panic(&GuardError{Found: found, Expected: expected})
			}
		}
	}
	return true
}

// -----------------------------
// Normal forms
// -----------------------------

func (rd *reducer) whnf(t *Term) *Term {
	return termOfState(rd.stateWhnf(stateOfTerm(t)))
}

// snf normalises t fully: whnf, then every sub-term.
func (rd *reducer) snf(t *Term) *Term {
	t = rd.whnf(t)
	switch t.Tag {
	case TApp:
		args := make([]*Term, len(t.Args))
		for i, a := range t.Args {
			args[i] = rd.snf(a)
		}
		return AppL(t.Head, args)
	case TLam:
		var dom *Term
		if t.Dom != nil {
			dom = rd.snf(t.Dom)
		}
		return Lam(t.Name, dom, rd.snf(t.Body))
	case TPi:
		return Pi(t.Name, rd.snf(t.Dom), rd.snf(t.Body))
	}
	return t
}

// snfAt is the logged-evaluation variant of snf: it tracks sub-term
// positions for the logger and only reduces λ annotations under
// ByStrongValue.
func (rd *reducer) snfAt(t *Term) *Term {
	if rd.cfg.Logger == nil {
		return rd.snf(t)
	}
	t = rd.whnf(t)
	recurse := func(i int, sub *Term) *Term {
		rd.pos = append(rd.pos, i)
		defer func() { rd.pos = rd.pos[:len(rd.pos)-1] }()
		return rd.snfAt(sub)
	}
	switch t.Tag {
	case TApp:
		args := make([]*Term, len(t.Args))
		for i, a := range t.Args {
			args[i] = recurse(i+1, a)
		}
		return AppL(t.Head, args)
	case TLam:
		dom := t.Dom
		if dom != nil && rd.cfg.Strategy == ByStrongValue {
			dom = recurse(0, dom)
		}
		return Lam(t.Name, dom, recurse(1, t.Body))
	case TPi:
		return Pi(t.Name, recurse(0, t.Dom), recurse(1, t.Body))
	}
	return t
}

// hnf reduces the spine: whnf, then the arguments.
func (rd *reducer) hnf(t *Term) *Term {
	t = rd.whnf(t)
	if t.Tag != TApp {
		return t
	}
	args := make([]*Term, len(t.Args))
	for i, a := range t.Args {
		args[i] = rd.hnf(a)
	}
	return AppL(t.Head, args)
}

// -----------------------------
// Convertibility
// -----------------------------

// convertible decides β-γ convertibility with a worklist of term pairs.
// Lambda domains are not compared; Pi domains are. No η.
func (rd *reducer) convertible(a, b *Term) bool {
	type pair struct{ a, b *Term }
	work := []pair{{a, b}}
	for len(work) > 0 {
		p := work[len(work)-1]
		work = work[:len(work)-1]
		if TermEq(p.a, p.b) {
			continue
		}
		t1 := rd.whnf(p.a)
		t2 := rd.whnf(p.b)
		if t1.Tag != t2.Tag {
			return false
		}
		switch t1.Tag {
		case TKind, TType:
			// equal tags suffice
		case TConst:
			if t1.Ref != t2.Ref {
				return false
			}
		case TDB:
			if t1.Idx != t2.Idx {
				return false
			}
		case tMeta:
			if t1.Idx != t2.Idx {
				return false
			}
		case TApp:
			if len(t1.Args) != len(t2.Args) {
				return false
			}
			work = append(work, pair{t1.Head, t2.Head})
			for i := range t1.Args {
				work = append(work, pair{t1.Args[i], t2.Args[i]})
			}
		case TLam:
			work = append(work, pair{t1.Body, t2.Body})
		case TPi:
			work = append(work, pair{t1.Dom, t2.Dom}, pair{t1.Body, t2.Body})
		default:
			return false
		}
	}
	return true
}

// -----------------------------
// Public surface
// -----------------------------

// recoverGuard converts the walker's bracket panic into an error return.
func recoverGuard(err *error) {
	if r := recover(); r != nil {
		if ge, ok := r.(*GuardError); ok {
			*err = ge
			return
		}
		panic(r)
	}
}

// Reduce normalises t under cfg.
func Reduce(sg *Signature, cfg ReductionConfig, t *Term) (res *Term, err error) {
	defer recoverGuard(&err)
	rd := newReducer(sg, cfg)
	if cfg.Target == TargetWhnf {
		return rd.whnf(t), nil
	}
	return rd.snfAt(t), nil
}

// Whnf reduces t to weak-head normal form under the default configuration.
func Whnf(sg *Signature, t *Term) (res *Term, err error) {
	defer recoverGuard(&err)
	return newReducer(sg, DefaultReductionConfig()).whnf(t), nil
}

// Snf reduces t to strong normal form.
func Snf(sg *Signature, t *Term) (res *Term, err error) {
	defer recoverGuard(&err)
	return newReducer(sg, DefaultReductionConfig()).snf(t), nil
}

// Hnf reduces t to head normal form.
func Hnf(sg *Signature, t *Term) (res *Term, err error) {
	defer recoverGuard(&err)
	return newReducer(sg, DefaultReductionConfig()).hnf(t), nil
}

// NSteps performs at most n β+γ firings on the way to the strong normal
// form, returning the partial normal form reached.
func NSteps(sg *Signature, n int, t *Term) (res *Term, err error) {
	defer recoverGuard(&err)
	cfg := DefaultReductionConfig()
	cfg.StepLimit = n
	return newReducer(sg, cfg).snf(t), nil
}

// AreConvertible decides β-γ convertibility of a and b.
func AreConvertible(sg *Signature, a, b *Term) (conv bool, err error) {
	defer recoverGuard(&err)
	return newReducer(sg, DefaultReductionConfig()).convertible(a, b), nil
}
