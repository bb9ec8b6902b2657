package dedukti

import (
	"strings"
	"testing"
)

// --- fixtures ---------------------------------------------------------------

// natEnv builds the Nat module through the entry stream.
func natEnv(t *testing.T) *Env {
	t.Helper()
	env := NewEnv("test")
	nat := Cst(qn("Nat"))
	entries := []*Entry{
		{Kind: EDecl, Name: qn("Nat"), Staticity: Static, Type: Type},
		{Kind: EDecl, Name: qn("z"), Staticity: Static, Type: nat},
		{Kind: EDecl, Name: qn("s"), Staticity: Static, Type: arrow(nat, nat)},
		{Kind: EDecl, Name: qn("plus"), Staticity: Definable, Type: arrow(nat, arrow(nat, nat))},
		{Kind: ERules, Rules: []*PreRule{
			{
				Name: qn("plus_z"),
				Ctx:  []RuleContextEntry{{Name: "m"}},
				LHS:  PatConst(qn("plus"), PatConst(qn("z")), PatVar("m", 0)),
				RHS:  DB("m", 0),
			},
			{
				Name: qn("plus_s"),
				Ctx:  []RuleContextEntry{{Name: "n"}, {Name: "m"}},
				LHS:  PatConst(qn("plus"), PatConst(qn("s"), PatVar("n", 1)), PatVar("m", 0)),
				RHS:  App(Cst(qn("s")), App(Cst(qn("plus")), DB("n", 1), DB("m", 0))),
			},
		}},
	}
	if err := env.ProcessAll(entries); err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}
	return env
}

// --- definitions ------------------------------------------------------------

func Test_Env_DefinitionUnfoldsByDeltaRule(t *testing.T) {
	env := natEnv(t)
	if err := env.Process(&Entry{
		Kind: EDef, Name: qn("two"), Body: church(2),
	}); err != nil {
		t.Fatalf("def: %v", err)
	}
	got := mustSnf(t, env.Signature(), App(Cst(qn("plus")), Cst(qn("two")), church(1)))
	wantEq(t, got, church(3))
}

func Test_Env_OpaqueDefinitionDoesNotUnfold(t *testing.T) {
	env := natEnv(t)
	if err := env.Process(&Entry{
		Kind: EDef, Name: qn("secret"), Opaque: true, Body: church(2),
	}); err != nil {
		t.Fatalf("opaque def: %v", err)
	}
	got := mustWhnf(t, env.Signature(), Cst(qn("secret")))
	wantEq(t, got, Cst(qn("secret")))
}

func Test_Env_DefWithDeclaredTypeIsChecked(t *testing.T) {
	env := natEnv(t)
	err := env.Process(&Entry{
		Kind: EDef, Name: qn("bad"), Type: Type, Body: church(1),
	})
	wantTypingErr(t, err, Convertibility)
}

func Test_Env_KindLevelDefinitionRejected(t *testing.T) {
	env := natEnv(t)
	// the body Type lives in Kind: not definable
	err := env.Process(&Entry{Kind: EDef, Name: qn("K"), Body: Type})
	wantTypingErr(t, err, KindLevelDefinition)
}

// --- queries ----------------------------------------------------------------

func Test_Env_EvalWritesNormalForm(t *testing.T) {
	env := natEnv(t)
	var out strings.Builder
	env.Out = &out
	if err := env.Process(&Entry{
		Kind: EEval, Body: App(Cst(qn("plus")), church(1), church(1)),
	}); err != nil {
		t.Fatalf("eval: %v", err)
	}
	want := TermString(church(2)) + "\n"
	if out.String() != want {
		t.Fatalf("eval output %q, want %q", out.String(), want)
	}
}

func Test_Env_InferWritesType(t *testing.T) {
	env := natEnv(t)
	var out strings.Builder
	env.Out = &out
	if err := env.Process(&Entry{Kind: EInfer, Body: Cst(qn("z"))}); err != nil {
		t.Fatalf("infer: %v", err)
	}
	if !strings.Contains(out.String(), "Nat") {
		t.Fatalf("infer output %q", out.String())
	}
}

func Test_Env_CheckEntryAnswersYesNo(t *testing.T) {
	env := natEnv(t)
	var out strings.Builder
	env.Out = &out
	if err := env.Process(&Entry{
		Kind: ECheck, CheckKind: AssertConvert,
		Body: App(Cst(qn("plus")), church(1), church(1)), T2: church(2),
	}); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := env.Process(&Entry{
		Kind: ECheck, CheckKind: AssertConvert,
		Body: church(1), T2: church(2),
	}); err != nil {
		t.Fatalf("check: %v", err)
	}
	if got := out.String(); got != "YES\nNO\n" {
		t.Fatalf("check output %q", got)
	}
}

func Test_Env_AssertFailureIsError(t *testing.T) {
	env := natEnv(t)
	err := env.Process(&Entry{
		Kind: ECheck, Assert: true, CheckKind: AssertConvert,
		Body: church(1), T2: church(2),
	})
	if err == nil {
		t.Fatalf("failed assertion must be an error")
	}
	// negation flips it back into success
	if err := env.Process(&Entry{
		Kind: ECheck, Assert: true, Negate: true, CheckKind: AssertConvert,
		Body: church(1), T2: church(2),
	}); err != nil {
		t.Fatalf("negated assertion: %v", err)
	}
}

func Test_Env_AssertHasType(t *testing.T) {
	env := natEnv(t)
	if err := env.Process(&Entry{
		Kind: ECheck, Assert: true, CheckKind: AssertHasType,
		Body: church(1), T2: Cst(qn("Nat")),
	}); err != nil {
		t.Fatalf("hastype assertion: %v", err)
	}
}

func Test_Env_DTreeQueryPrintsTree(t *testing.T) {
	env := natEnv(t)
	var out strings.Builder
	env.Out = &out
	if err := env.Process(&Entry{Kind: EDTree, Name: qn("plus")}); err != nil {
		t.Fatalf("dtree: %v", err)
	}
	if !strings.Contains(out.String(), "switch col 0") {
		t.Fatalf("dtree output %q", out.String())
	}
}

func Test_Env_PrintAndName(t *testing.T) {
	env := NewEnv("scratch")
	var out strings.Builder
	env.Out = &out
	if err := env.ProcessAll([]*Entry{
		{Kind: EName, Text: "arith"},
		{Kind: EPrint, Text: "hello"},
	}); err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}
	if env.Signature().Name() != "arith" {
		t.Fatalf("module name not set: %q", env.Signature().Name())
	}
	if out.String() != "hello\n" {
		t.Fatalf("print output %q", out.String())
	}
}
