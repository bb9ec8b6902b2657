// typing.go — the bidirectional typing judgement for the λΠ calculus and the
// rule checker that ties pattern elaboration, constraint solving and the
// reducer together.
//
// Inference and checking follow the standard presentation: sorts are Type and
// Kind, applications are folded through whnf-exposed products, lambdas infer
// to products and check against them (a domain-free lambda only checks),
// convertibility goes through reduce.go. The typing context is innermost
// first: Γ[0] is the most recently bound variable and its type is shifted on
// every lookup.

package dedukti

type CtxEntry struct {
	Name string
	Type *Term
}

// Context is a typing context, innermost entry first.
type Context []CtxEntry

func (c Context) push(e CtxEntry) Context {
	out := make(Context, 0, len(c)+1)
	out = append(out, e)
	out = append(out, c...)
	return out
}

func (c Context) names() []string {
	out := make([]string, len(c))
	for i, e := range c {
		out[i] = e.Name
	}
	return out
}

type typer struct {
	sg  *Signature
	rd  *reducer
	loc Loc
}

func newTyper(sg *Signature, loc Loc) *typer {
	return &typer{sg: sg, rd: newReducer(sg, DefaultReductionConfig()), loc: loc}
}

// Infer returns the type of t in ctx.
func Infer(sg *Signature, loc Loc, ctx Context, t *Term) (ty *Term, err error) {
	defer recoverGuard(&err)
	return newTyper(sg, loc).infer(ctx, t)
}

// Check verifies t : want in ctx.
func Check(sg *Signature, loc Loc, ctx Context, t, want *Term) (err error) {
	defer recoverGuard(&err)
	return newTyper(sg, loc).check(ctx, t, want)
}

func (ty *typer) infer(ctx Context, t *Term) (*Term, error) {
	switch t.Tag {
	case TKind:
		return nil, &TypingError{Code: KindIsNotTypable, Loc: ty.loc}
	case TType:
		return Kind, nil
	case TDB:
		if t.Idx >= len(ctx) {
			return nil, &TypingError{Code: VariableNotFound, Loc: ty.loc, Var: t.Name, Ctx: ctx.names()}
		}
		return Shift(t.Idx+1, 0, ctx[t.Idx].Type), nil
	case TConst:
		return ty.sg.GetType(ty.loc, t.Ref)
	case TApp:
		fty, err := ty.infer(ctx, t.Head)
		if err != nil {
			return nil, err
		}
		f := t.Head
		for _, u := range t.Args {
			fty, err = ty.inferApp(ctx, f, fty, u)
			if err != nil {
				return nil, err
			}
			f = App(f, u)
		}
		return fty, nil
	case TLam:
		if t.Dom == nil {
			return nil, &TypingError{Code: DomainFreeLambda, Loc: ty.loc, Term: t}
		}
		if err := ty.check(ctx, t.Dom, Type); err != nil {
			return nil, err
		}
		bty, err := ty.infer(ctx.push(CtxEntry{Name: t.Name, Type: t.Dom}), t.Body)
		if err != nil {
			return nil, err
		}
		if bty.Tag == TKind {
			return nil, &TypingError{Code: InexpectedKind, Loc: ty.loc, Term: t.Body, Ctx: ctx.names()}
		}
		return Pi(t.Name, t.Dom, bty), nil
	case TPi:
		if err := ty.check(ctx, t.Dom, Type); err != nil {
			return nil, err
		}
		sort, err := ty.infer(ctx.push(CtxEntry{Name: t.Name, Type: t.Dom}), t.Body)
		if err != nil {
			return nil, err
		}
		sort = ty.rd.whnf(sort)
		if sort.Tag != TType && sort.Tag != TKind {
			return nil, &TypingError{Code: SortExpected, Loc: ty.loc, Term: t.Body, Inferred: sort}
		}
		return sort, nil
	}
	return nil, &TypingError{Code: CannotInferTypeOfPattern, Loc: ty.loc, Term: t}
}

// inferApp applies one argument: the function type is whnf-forced to a
// product, the argument checked against its domain.
func (ty *typer) inferApp(ctx Context, f, fty *Term, u *Term) (*Term, error) {
	w := ty.rd.whnf(fty)
	if w.Tag != TPi {
		return nil, &TypingError{Code: ProductExpected, Loc: ty.loc, Term: f, Inferred: fty, Ctx: ctx.names()}
	}
	if err := ty.check(ctx, u, w.Dom); err != nil {
		return nil, err
	}
	return Subst(w.Body, u), nil
}

func (ty *typer) check(ctx Context, t, want *Term) error {
	// a domain-free lambda has no inferable type; push it through the product
	if t.Tag == TLam && t.Dom == nil {
		w := ty.rd.whnf(want)
		if w.Tag != TPi {
			return &TypingError{Code: ProductExpected, Loc: ty.loc, Term: t, Inferred: want, Ctx: ctx.names()}
		}
		return ty.check(ctx.push(CtxEntry{Name: t.Name, Type: w.Dom}), t.Body, w.Body)
	}
	got, err := ty.infer(ctx, t)
	if err != nil {
		return err
	}
	if !ty.rd.convertible(got, want) {
		return &TypingError{Code: Convertibility, Loc: ty.loc, Term: t, Ctx: ctx.names(), Expected: want, Inferred: got}
	}
	return nil
}

// -----------------------------
// Rule checking
// -----------------------------

// CheckRule elaborates and type-checks one rule: the declared context is
// checked (missing types become metavariables), the LHS is elaborated against
// the head's type yielding constraints, the constraints are solved, the RHS
// is checked at the inferred LHS type, and the arity invariant is enforced.
func CheckRule(sg *Signature, pre *PreRule) (r *Rule, err error) {
	defer recoverGuard(&err)
	ty := newTyper(sg, pre.Loc)
	n := len(pre.Ctx)

	pt := &ptyper{ty: ty, pre: pre, arities: make([]int, n)}
	for i := range pt.arities {
		pt.arities[i] = -1
	}

	// rule context as a typing context, innermost = last declared
	lctx := make(Context, n)
	for s, e := range pre.Ctx {
		t := e.Type
		if t == nil {
			t = pt.freshMeta(e.Name)
		} else {
			sort, ierr := ty.infer(lctx[n-1-s+1:], t) // entries declared before s are in scope
			if ierr != nil {
				return nil, ierr
			}
			sort = ty.rd.whnf(sort)
			if sort.Tag != TType && sort.Tag != TKind {
				return nil, &TypingError{Code: SortExpected, Loc: pre.Loc, Term: t, Inferred: sort}
			}
		}
		lctx[n-1-s] = CtxEntry{Name: e.Name, Type: t}
	}
	pt.lctx = lctx

	if pre.LHS == nil || pre.LHS.Tag != PPattern {
		return nil, &PatternError{Code: AVariableIsNotAPattern, Loc: pre.Loc}
	}
	head := sg.resolve(pre.LHS.Ref)
	lhsTy, err := pt.inferLHS(head, pre.LHS.Args)
	if err != nil {
		return nil, err
	}

	sigma, err := solveEquations(ty.rd, pt.eqs)
	if err != nil {
		return nil, err
	}
	rctx := make(Context, n)
	for i, e := range lctx {
		t := sigma.apply(e.Type)
		if hasMeta(t) {
			return nil, &TypingError{Code: CannotInferTypeOfPattern, Loc: pre.Loc, Var: e.Name}
		}
		rctx[i] = CtxEntry{Name: e.Name, Type: t}
	}
	lhsTy = sigma.apply(lhsTy)
	if hasMeta(lhsTy) {
		return nil, &TypingError{Code: CannotInferTypeOfPattern, Loc: pre.Loc}
	}

	// deferred bracket obligations, now that metavariables are solved
	for _, ob := range pt.brackets {
		bctx := make(Context, len(ob.lctx))
		for i, e := range ob.lctx {
			bctx[i] = CtxEntry{Name: e.Name, Type: sigma.apply(e.Type)}
		}
		if err := ty.check(bctx, ob.term, sigma.apply(ob.expected)); err != nil {
			return nil, err
		}
	}

	if err := ty.check(rctx, pre.RHS, lhsTy); err != nil {
		return nil, err
	}

	// every declared variable must be matchable
	for s, a := range pt.arities {
		if a < 0 {
			return nil, &PatternError{Code: UnboundVariable, Loc: pre.Loc, Var: pre.Ctx[s].Name}
		}
	}
	// the arity invariant: RHS occurrences apply each variable at least as
	// much as the LHS match position does
	if err := checkRHSArities(pre, pt.arities, n); err != nil {
		return nil, err
	}

	name := pre.Name
	if name == (QName{}) {
		name = QName{Mod: sg.Name(), ID: "rule_" + head.ID}
	}
	return &Rule{
		Loc:     pre.Loc,
		Name:    name,
		Ctx:     typedCtxEntries(pre.Ctx, rctx),
		HeadSym: head,
		Args:    pre.LHS.Args,
		RHS:     pre.RHS,
		Arities: pt.arities,
	}, nil
}

func typedCtxEntries(declared []RuleContextEntry, rctx Context) []RuleContextEntry {
	n := len(declared)
	out := make([]RuleContextEntry, n)
	for s := range declared {
		out[s] = RuleContextEntry{Name: declared[s].Name, Type: rctx[n-1-s].Type}
	}
	return out
}

// checkRHSArities walks the RHS verifying that every occurrence of a context
// variable is applied to at least its LHS arity.
func checkRHSArities(pre *PreRule, arities []int, n int) error {
	var walk func(t *Term, d, applied int) error
	walk = func(t *Term, d, applied int) error {
		switch t.Tag {
		case TDB:
			slot := ctxSlotOf(n, t.Idx, d)
			if slot >= 0 && applied < arities[slot] {
				return &TypingError{
					Code: NotEnoughArguments, Loc: pre.Loc,
					Var: pre.Ctx[slot].Name, Declared: arities[slot], Used: applied,
				}
			}
			return nil
		case TApp:
			if err := walk(t.Head, d, len(t.Args)); err != nil {
				return err
			}
			for _, a := range t.Args {
				if err := walk(a, d, 0); err != nil {
					return err
				}
			}
			return nil
		case TLam:
			if t.Dom != nil {
				if err := walk(t.Dom, d, 0); err != nil {
					return err
				}
			}
			return walk(t.Body, d+1, 0)
		case TPi:
			if err := walk(t.Dom, d, 0); err != nil {
				return err
			}
			return walk(t.Body, d+1, 0)
		}
		return nil
	}
	return walk(pre.RHS, 0, 0)
}
