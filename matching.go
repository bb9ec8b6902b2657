// matching.go — the Miller-pattern solver used by rewriting.
//
// A higher-order matching problem in the Miller fragment: under d enclosing
// binders, a pattern variable F applied to distinct bound variables x₁…xₖ is
// matched against a term t. The unique solution, when it exists, is the
// k-fold abstraction λy₁…yₖ. t' where each xᵢ is renamed to the matching λ
// position and every other bound variable of the d-scope makes the problem
// unsolvable. Free variables of t above the d-scope survive, re-indexed to
// the k-scope of the solution.
//
// solveMiller panics with notUnifiableSig on failure; callers retry after
// normalising t (reduce.go) and give up on the second failure.

package dedukti

// solveMiller returns u with u x₁…xₖ ≡ t, where ks lists the k distinct
// bound-variable indices (all < d) and t lives under d binders. Panics with
// notUnifiableSig when t mentions a d-scope variable outside ks.
func solveMiller(d int, ks []int, t *Term) *Term {
	u := millerWalk(t, 0, d, ks)
	for i := len(ks) - 1; i >= 0; i-- {
		u = Lam("y", nil, u)
	}
	return u
}

// millerWalk rewrites t from the (extra+d)-scope to the (extra+k)-scope.
// extra counts binders crossed inside t itself.
func millerWalk(t *Term, extra, d int, ks []int) *Term {
	k := len(ks)
	switch t.Tag {
	case TKind, TType, TConst, tMeta:
		return t
	case TDB:
		idx := t.Idx
		if idx < extra {
			return t
		}
		j := idx - extra
		if j < d {
			for pos, x := range ks {
				if x == j {
					return DB(t.Name, extra+k-1-pos)
				}
			}
			panic(notUnifiableSig{})
		}
		return DB(t.Name, extra+(j-d)+k)
	case TApp:
		args := make([]*Term, len(t.Args))
		for i, a := range t.Args {
			args[i] = millerWalk(a, extra, d, ks)
		}
		return AppL(millerWalk(t.Head, extra, d, ks), args)
	case TLam:
		var dom *Term
		if t.Dom != nil {
			dom = millerWalk(t.Dom, extra, d, ks)
		}
		return Lam(t.Name, dom, millerWalk(t.Body, extra+1, d, ks))
	case TPi:
		return Pi(t.Name, millerWalk(t.Dom, extra, d, ks), millerWalk(t.Body, extra+1, d, ks))
	}
	panic("millerWalk: bad term tag")
}

// SolveMiller is the checked form of solveMiller: ok is false when t mentions
// a bound variable outside ks.
func SolveMiller(d int, ks []int, t *Term) (u *Term, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, isSig := r.(notUnifiableSig); isSig {
				u, ok = nil, false
				return
			}
			panic(r)
		}
	}()
	return solveMiller(d, ks, t), true
}
