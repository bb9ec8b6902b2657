package dedukti

import (
	"strings"
	"testing"
)

func Test_Printer_Terms(t *testing.T) {
	cases := []struct {
		tm   *Term
		want string
	}{
		{Type, "Type"},
		{Kind, "Kind"},
		{Cst(qn("plus")), "test.plus"},
		{App(Cst(qn("s")), Cst(qn("z"))), "test.s test.z"},
		{App(Cst(qn("f")), App(Cst(qn("g")), Cst(qn("z")))), "test.f (test.g test.z)"},
		{Lam("x", nil, DB("x", 0)), "x => x[0]"},
		{Pi("x", Cst(qn("A")), DB("x", 0)), "x : test.A -> x[0]"},
		{Pi("", Cst(qn("A")), Cst(qn("B"))), "_ : test.A -> test.B"},
	}
	for _, c := range cases {
		if got := TermString(c.tm); got != c.want {
			t.Fatalf("TermString = %q, want %q", got, c.want)
		}
	}
}

func Test_Printer_Rule(t *testing.T) {
	r := &Rule{
		Name:    qn("plus_z"),
		Ctx:     []RuleContextEntry{{Name: "m", Type: Cst(qn("Nat"))}},
		HeadSym: qn("plus"),
		Args:    []*Pattern{PatConst(qn("z")), PatVar("m", 0)},
		RHS:     DB("m", 0),
		Arities: []int{0},
	}
	got := RuleString(r)
	if !strings.Contains(got, "test.plus") || !strings.Contains(got, "-->") {
		t.Fatalf("RuleString = %q", got)
	}
}

func Test_Printer_DTreeOutline(t *testing.T) {
	sg := natSig(t)
	pivot, tree, _ := sg.GetDTree(qn("plus"))
	out := DTreeString(pivot, tree)
	for _, frag := range []string{"pivot=2", "switch col 0", "test.z/0", "test.s/1", "test.plus_z", "syntactic"} {
		if !strings.Contains(out, frag) {
			t.Fatalf("tree outline missing %q:\n%s", frag, out)
		}
	}
}
