// pattern_typing.go — elaborating a rule left-hand side against the head
// symbol's type.
//
// The fold mirrors application typing: the head's type is whnf-forced to a
// product for each argument, the argument pattern is checked against the
// domain, and the codomain is instantiated with the pattern read back as a
// term. Checking a pattern produces equations rather than performing
// conversions eagerly — context-entry types may still be metavariables at
// this point; solveEquations (unify.go) resolves everything at the end.
//
// The Miller restriction is enforced here: a context variable may only be
// applied to pairwise-distinct variables bound inside the pattern.

package dedukti

type bracketOb struct {
	lctx     Context
	term     *Term
	expected *Term
}

type ptyper struct {
	ty       *typer
	pre      *PreRule
	lctx     Context // pattern binders ++ rule context, innermost first
	eqs      []equation
	brackets []bracketOb
	metas    int
	arities  []int // per context slot; -1 = not seen on the LHS
}

func (pt *ptyper) freshMeta(hint string) *Term {
	pt.metas++
	return meta(pt.metas, hint)
}

// depth is the number of pattern binders currently crossed.
func (pt *ptyper) depth() int { return len(pt.lctx) - len(pt.pre.Ctx) }

func (pt *ptyper) eq(lhs, rhs *Term) {
	pt.eqs = append(pt.eqs, equation{depth: pt.depth(), lhs: lhs, rhs: rhs})
}

// patTerm reads a pattern back as a term for codomain instantiation. Unlike
// PatternToTerm it renders a joker as a fresh metavariable, so a dependent
// codomain never picks up a bogus index from a wildcard.
func (pt *ptyper) patTerm(p *Pattern) *Term {
	switch p.Tag {
	case PJoker:
		return pt.freshMeta("_")
	case PVar:
		args := make([]*Term, len(p.Args))
		for i, a := range p.Args {
			args[i] = pt.patTerm(a)
		}
		return AppL(DB(p.Name, p.Idx), args)
	case PPattern:
		args := make([]*Term, len(p.Args))
		for i, a := range p.Args {
			args[i] = pt.patTerm(a)
		}
		return AppL(Cst(p.Ref), args)
	case PLambda:
		return Lam(p.Name, nil, pt.patTerm(p.Body))
	case PBracket:
		return p.Term
	}
	panic("patTerm: bad pattern tag")
}

// inferLHS folds the LHS arguments through the head's type and returns the
// type of the full left-hand side.
func (pt *ptyper) inferLHS(head QName, args []*Pattern) (*Term, error) {
	hty, err := pt.ty.sg.GetType(pt.pre.Loc, head)
	if err != nil {
		return nil, err
	}
	return pt.foldPatternApp(Cst(head), hty, args)
}

func (pt *ptyper) foldPatternApp(f, fty *Term, args []*Pattern) (*Term, error) {
	for _, p := range args {
		w := pt.ty.rd.whnf(fty)
		if w.Tag != TPi {
			return nil, &TypingError{Code: ProductExpected, Loc: pt.pre.Loc, Term: f, Inferred: fty}
		}
		if err := pt.checkPattern(w.Dom, p); err != nil {
			return nil, err
		}
		arg := pt.patTerm(p)
		f = App(f, arg)
		fty = Subst(w.Body, arg)
	}
	return fty, nil
}

// checkPattern checks p against the expected type, growing the equation set.
func (pt *ptyper) checkPattern(expected *Term, p *Pattern) error {
	n := len(pt.pre.Ctx)
	d := pt.depth()
	switch p.Tag {
	case PJoker:
		return nil

	case PVar:
		slot := ctxSlotOf(n, p.Idx, d)
		if slot >= 0 {
			// context (pattern) variable: Miller restriction on its arguments
			if _, err := boundArgIndices(p, d, pt.pre.Loc); err != nil {
				return err
			}
			if prev := pt.arities[slot]; prev >= 0 && prev != len(p.Args) {
				return &PatternError{Code: NonLinearNonEqArguments, Loc: pt.pre.Loc, Var: p.Name}
			}
			pt.arities[slot] = len(p.Args)
			vty := pt.lctx[p.Idx].Type
			if vty.Tag == tMeta {
				if len(p.Args) > 0 {
					// an applied variable needs a declared product type
					return &TypingError{Code: CannotInferTypeOfPattern, Loc: pt.pre.Loc, Var: p.Name}
				}
				// the solution is stored at the entry's declaration scope,
				// below the binders, the entry itself and every entry
				// declared after it — hence the idx+1 unshift depth
				pt.eqs = append(pt.eqs, equation{depth: p.Idx + 1, lhs: expected, rhs: vty})
				return nil
			}
			rty, err := pt.foldPatternApp(DB(p.Name, p.Idx), Shift(p.Idx+1, 0, vty), p.Args)
			if err != nil {
				return err
			}
			pt.eq(expected, rty)
			return nil
		}
		// variable bound by a pattern lambda: rigid
		if p.Idx >= len(pt.lctx) {
			return &PatternError{Code: UnboundVariable, Loc: pt.pre.Loc, Var: p.Name}
		}
		vty := Shift(p.Idx+1, 0, pt.lctx[p.Idx].Type)
		rty, err := pt.foldPatternApp(DB(p.Name, p.Idx), vty, p.Args)
		if err != nil {
			return err
		}
		pt.eq(expected, rty)
		return nil

	case PPattern:
		ref := pt.ty.sg.resolve(p.Ref)
		cty, err := pt.ty.sg.GetType(pt.pre.Loc, ref)
		if err != nil {
			return err
		}
		rty, err := pt.foldPatternApp(Cst(ref), cty, p.Args)
		if err != nil {
			return err
		}
		pt.eq(expected, rty)
		return nil

	case PLambda:
		w := pt.ty.rd.whnf(expected)
		if w.Tag != TPi {
			return &TypingError{Code: CannotInferTypeOfPattern, Loc: pt.pre.Loc, Term: expected}
		}
		pt.lctx = pt.lctx.push(CtxEntry{Name: p.Name, Type: w.Dom})
		err := pt.checkPattern(w.Body, p.Body)
		pt.lctx = pt.lctx[1:]
		return err

	case PBracket:
		// a bracket is an ordinary term, but its variables may still have
		// metavariable types here; checking is deferred until the equation
		// set is solved (CheckRule)
		pt.brackets = append(pt.brackets, bracketOb{lctx: pt.lctx, term: p.Term, expected: expected})
		return nil
	}
	panic("checkPattern: bad pattern tag")
}
