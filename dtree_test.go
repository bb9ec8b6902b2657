package dedukti

import "testing"

// --- compiled shapes --------------------------------------------------------

func Test_DTree_PivotAndSwitch(t *testing.T) {
	sg := natSig(t)
	pivot, tree, ok := sg.GetDTree(qn("plus"))
	if !ok {
		t.Fatalf("plus has no compiled tree")
	}
	if pivot != 2 {
		t.Fatalf("want pivot 2, got %d", pivot)
	}
	if tree.Tag != DTSwitch || tree.Col != 0 {
		t.Fatalf("want a switch on column 0, got %s", DTreeString(pivot, tree))
	}
	if len(tree.Cases) != 2 {
		t.Fatalf("want cases for z and s, got %d", len(tree.Cases))
	}
	for _, c := range tree.Cases {
		if c.Shape.Kind != CaseConst {
			t.Fatalf("want constant cases, got %v", c.Shape.Kind)
		}
	}
}

func Test_DTree_SyntacticLeafForFirstOrderRules(t *testing.T) {
	sg := natSig(t)
	_, tree, _ := sg.GetDTree(qn("plus"))
	leaf := tree.Cases[0].Tree
	if leaf.Tag != DTTest {
		t.Fatalf("want a test leaf under the z case")
	}
	if !leaf.Problem.Syntactic {
		t.Fatalf("unapplied variables must compile to a syntactic problem")
	}
}

func Test_DTree_MillerLeafForAppliedVariables(t *testing.T) {
	// compiled by Test_Reduce_S4 fixture shape: apply (x => F x) v
	sg := newSig()
	a, b := Cst(qn("A")), Cst(qn("B"))
	declare(t, sg, "A", Static, Type)
	declare(t, sg, "B", Static, Type)
	declare(t, sg, "apply", Definable, arrow(arrow(a, b), arrow(a, b)))
	addRule(t, sg, &PreRule{
		Name: qn("apply_beta"),
		Ctx: []RuleContextEntry{
			{Name: "F", Type: arrow(a, b)},
			{Name: "v", Type: a},
		},
		LHS: PatConst(qn("apply"),
			PatLam("x", PatVar("F", 2, PatVar("x", 0))),
			PatVar("v", 0)),
		RHS: App(DB("F", 1), DB("v", 0)),
	})
	_, tree, ok := sg.GetDTree(qn("apply"))
	if !ok || tree.Tag != DTSwitch {
		t.Fatalf("want a switch on the lambda column")
	}
	if tree.Cases[0].Shape.Kind != CaseLam {
		t.Fatalf("want a lambda case, got %v", tree.Cases[0].Shape)
	}
	leaf := tree.Cases[0].Tree
	if leaf.Tag != DTTest || leaf.Problem.Syntactic {
		t.Fatalf("applied variable must compile to a Miller problem")
	}
}

func Test_DTree_FirstCompiledRuleWins(t *testing.T) {
	sg := newSig()
	nat := Cst(qn("Nat"))
	declare(t, sg, "Nat", Static, Type)
	declare(t, sg, "z", Static, nat)
	declare(t, sg, "one", Static, nat)
	declare(t, sg, "two", Static, nat)
	declare(t, sg, "f", Definable, arrow(nat, nat))
	// f x --> one  comes first; the overlapping  f z --> two  never fires
	addRule(t, sg, &PreRule{
		Name: qn("f_any"),
		Ctx:  []RuleContextEntry{{Name: "x"}},
		LHS:  PatConst(qn("f"), PatVar("x", 0)),
		RHS:  Cst(qn("one")),
	})
	addRule(t, sg, &PreRule{
		Name: qn("f_z"),
		LHS:  PatConst(qn("f"), PatConst(qn("z"))),
		RHS:  Cst(qn("two")),
	})
	got := mustWhnf(t, sg, App(Cst(qn("f")), Cst(qn("z"))))
	wantEq(t, got, Cst(qn("one")))
}

func Test_DTree_DefaultReachesLaterRule(t *testing.T) {
	sg := newSig()
	nat := Cst(qn("Nat"))
	declare(t, sg, "Nat", Static, Type)
	declare(t, sg, "z", Static, nat)
	declare(t, sg, "one", Static, nat)
	declare(t, sg, "two", Static, nat)
	declare(t, sg, "f", Definable, arrow(nat, nat))
	// the specific rule first, the catch-all second
	addRule(t, sg, &PreRule{
		Name: qn("f_z"),
		LHS:  PatConst(qn("f"), PatConst(qn("z"))),
		RHS:  Cst(qn("one")),
	})
	addRule(t, sg, &PreRule{
		Name: qn("f_any"),
		Ctx:  []RuleContextEntry{{Name: "x"}},
		LHS:  PatConst(qn("f"), PatVar("x", 0)),
		RHS:  Cst(qn("two")),
	})
	wantEq(t, mustWhnf(t, sg, App(Cst(qn("f")), Cst(qn("z")))), Cst(qn("one")))
	wantEq(t, mustWhnf(t, sg, App(Cst(qn("f")), Cst(qn("one")))), Cst(qn("two")))
}

// --- compile-time failures --------------------------------------------------

func Test_DTree_HeadMismatchRejected(t *testing.T) {
	r1 := &Rule{Name: qn("r1"), HeadSym: qn("f"), Args: []*Pattern{PatJoker(0)}, RHS: Cst(qn("a")), Ctx: nil}
	r2 := &Rule{Name: qn("r2"), HeadSym: qn("g"), Args: []*Pattern{PatJoker(1)}, RHS: Cst(qn("a")), Ctx: nil}
	if _, _, err := CompileRules([]*Rule{r1, r2}, nil); err == nil {
		t.Fatalf("rules with different heads must not compile together")
	} else if _, ok := err.(*HeadMismatchError); !ok {
		t.Fatalf("want *HeadMismatchError, got %T", err)
	}
}

func Test_DTree_ArityInnerMismatchRejected(t *testing.T) {
	staticity := func(q QName) Staticity {
		if q.ID == "g" {
			return Definable
		}
		return Static
	}
	// f (g _) --> a  and  f (g _ _) --> a : g is definable, arity differs
	r1 := &Rule{Name: qn("r1"), HeadSym: qn("f"),
		Args: []*Pattern{PatConst(qn("g"), PatJoker(0))}, RHS: Cst(qn("a"))}
	r2 := &Rule{Name: qn("r2"), HeadSym: qn("f"),
		Args: []*Pattern{PatConst(qn("g"), PatJoker(1), PatJoker(2))}, RHS: Cst(qn("a"))}
	if _, _, err := CompileRules([]*Rule{r1, r2}, staticity); err == nil {
		t.Fatalf("definable symbol at two arities in one column must not compile")
	} else if _, ok := err.(*ArityInnerMismatchError); !ok {
		t.Fatalf("want *ArityInnerMismatchError, got %T", err)
	}
}

func Test_DTree_JokerPaddingToPivot(t *testing.T) {
	// one rule of arity 1, one of arity 2: pivot 2, the short rule padded
	nat := Cst(qn("Nat"))
	sg := newSig()
	declare(t, sg, "Nat", Static, Type)
	declare(t, sg, "z", Static, nat)
	declare(t, sg, "s", Static, arrow(nat, nat))
	declare(t, sg, "k", Definable, arrow(nat, arrow(nat, nat)))
	// k z --> (y => y)
	addRule(t, sg, &PreRule{
		Name: qn("k_z"),
		LHS:  PatConst(qn("k"), PatConst(qn("z"))),
		RHS:  Lam("y", nil, DB("y", 0)),
	})
	// k (s n) m --> m
	addRule(t, sg, &PreRule{
		Name: qn("k_s"),
		Ctx:  []RuleContextEntry{{Name: "n"}, {Name: "m"}},
		LHS:  PatConst(qn("k"), PatConst(qn("s"), PatVar("n", 1)), PatVar("m", 0)),
		RHS:  DB("m", 0),
	})
	pivot, _, ok := sg.GetDTree(qn("k"))
	if !ok || pivot != 2 {
		t.Fatalf("want pivot 2, got %d", pivot)
	}
	// an application shorter than the pivot is inert
	short := App(Cst(qn("k")), Cst(qn("z")))
	wantEq(t, mustWhnf(t, sg, short), short)
	// the padded column's argument survives the short rule's firing
	got := mustWhnf(t, sg, App(Cst(qn("k")), Cst(qn("z")), church(1)))
	wantEq(t, got, church(1))
}
