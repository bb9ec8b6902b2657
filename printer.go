package dedukti

import (
	"fmt"
	"strconv"
	"strings"
)

/* ---------- term rendering ---------- */

// TermString renders t in the concrete syntax: applications juxtaposed,
// "x : A -> B" for products, "x => t" for lambdas, "_" for anonymous
// binders. De Bruijn indices print through their name hints with the index
// appended ("x[1]") so distinct variables never render identically.
func TermString(t *Term) string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	writeTerm(&b, t, false)
	return b.String()
}

func writeTerm(b *strings.Builder, t *Term, atom bool) {
	switch t.Tag {
	case TKind:
		b.WriteString("Kind")
	case TType:
		b.WriteString("Type")
	case TDB:
		name := t.Name
		if name == "" {
			name = "_"
		}
		b.WriteString(name)
		b.WriteString("[")
		b.WriteString(strconv.Itoa(t.Idx))
		b.WriteString("]")
	case tMeta:
		fmt.Fprintf(b, "?%d", t.Idx)
	case TConst:
		b.WriteString(t.Ref.String())
	case TApp:
		if atom {
			b.WriteString("(")
		}
		writeTerm(b, t.Head, true)
		for _, a := range t.Args {
			b.WriteString(" ")
			writeTerm(b, a, true)
		}
		if atom {
			b.WriteString(")")
		}
	case TLam:
		if atom {
			b.WriteString("(")
		}
		b.WriteString(binderName(t.Name))
		if t.Dom != nil {
			b.WriteString(" : ")
			writeTerm(b, t.Dom, true)
		}
		b.WriteString(" => ")
		writeTerm(b, t.Body, false)
		if atom {
			b.WriteString(")")
		}
	case TPi:
		if atom {
			b.WriteString("(")
		}
		b.WriteString(binderName(t.Name))
		b.WriteString(" : ")
		writeTerm(b, t.Dom, true)
		b.WriteString(" -> ")
		writeTerm(b, t.Body, false)
		if atom {
			b.WriteString(")")
		}
	}
}

func binderName(n string) string {
	if n == "" {
		return "_"
	}
	return n
}

func (t *Term) String() string { return TermString(t) }

/* ---------- pattern rendering ---------- */

func PatternString(p *Pattern) string {
	var b strings.Builder
	writePattern(&b, p, false)
	return b.String()
}

func writePattern(b *strings.Builder, p *Pattern, atom bool) {
	switch p.Tag {
	case PVar, pSlot:
		if atom && len(p.Args) > 0 {
			b.WriteString("(")
		}
		b.WriteString(binderName(p.Name))
		fmt.Fprintf(b, "[%d]", p.Idx)
		for _, a := range p.Args {
			b.WriteString(" ")
			writePattern(b, a, true)
		}
		if atom && len(p.Args) > 0 {
			b.WriteString(")")
		}
	case PPattern:
		if atom && len(p.Args) > 0 {
			b.WriteString("(")
		}
		b.WriteString(p.Ref.String())
		for _, a := range p.Args {
			b.WriteString(" ")
			writePattern(b, a, true)
		}
		if atom && len(p.Args) > 0 {
			b.WriteString(")")
		}
	case PLambda:
		if atom {
			b.WriteString("(")
		}
		b.WriteString(binderName(p.Name))
		b.WriteString(" => ")
		writePattern(b, p.Body, false)
		if atom {
			b.WriteString(")")
		}
	case PBracket:
		b.WriteString("{")
		b.WriteString(TermString(p.Term))
		b.WriteString("}")
	case PJoker:
		b.WriteString("_")
	}
}

func (p *Pattern) String() string { return PatternString(p) }

/* ---------- rule rendering ---------- */

func RuleString(r *Rule) string {
	var b strings.Builder
	b.WriteString("[")
	for i, e := range r.Ctx {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.Name)
		if e.Type != nil {
			b.WriteString(" : ")
			b.WriteString(TermString(e.Type))
		}
	}
	b.WriteString("] ")
	b.WriteString(r.HeadSym.String())
	for _, a := range r.Args {
		b.WriteString(" ")
		writePattern(&b, a, true)
	}
	b.WriteString(" --> ")
	b.WriteString(TermString(r.RHS))
	return b.String()
}

func (r *Rule) String() string { return RuleString(r) }

/* ---------- decision-tree rendering ---------- */

// DTreeString renders a compiled tree as an indented outline, the shape the
// #DTREE query prints.
func DTreeString(pivot int, t *DTree) string {
	var b strings.Builder
	fmt.Fprintf(&b, "pivot=%d\n", pivot)
	writeTree(&b, t, 0)
	return b.String()
}

func writeTree(b *strings.Builder, t *DTree, depth int) {
	ind := strings.Repeat("  ", depth)
	if t == nil {
		b.WriteString(ind)
		b.WriteString("fail\n")
		return
	}
	switch t.Tag {
	case DTSwitch:
		fmt.Fprintf(b, "%sswitch col %d\n", ind, t.Col)
		for _, c := range t.Cases {
			fmt.Fprintf(b, "%scase %s:\n", ind, shapeString(c.Shape))
			writeTree(b, c.Tree, depth+1)
		}
		fmt.Fprintf(b, "%sdefault:\n", ind)
		writeTree(b, t.Def, depth+1)
	case DTTest:
		kind := "miller"
		if t.Problem.Syntactic {
			kind = "syntactic"
		}
		fmt.Fprintf(b, "%stest %s (%s, %d guards) --> %s\n",
			ind, t.RuleName, kind, len(t.Guards), TermString(t.RHS))
		if t.Def != nil {
			fmt.Fprintf(b, "%sdefault:\n", ind)
			writeTree(b, t.Def, depth+1)
		}
	}
}

func shapeString(s CaseShape) string {
	switch s.Kind {
	case CaseConst:
		return fmt.Sprintf("%s/%d", s.Name, s.Arity)
	case CaseDB:
		return fmt.Sprintf("#%d/%d", s.Idx, s.Arity)
	case CaseLam:
		return "lambda"
	}
	return "?"
}
