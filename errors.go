// errors.go — the checker's failure taxonomy and snippet rendering.
//
// Two layers, kept strictly apart:
//
//  1. Signals. notUnifiableSig (below) and unshiftSig (term.go) are panicked inside
//     the matcher/reducer and recovered locally — they implement the
//     retry-after-normalisation discipline and never escape to callers.
//  2. Errors. Every user-visible failure is a distinct struct carrying a
//     source location when one is known. The façade surfaces them unchanged;
//     the tooling layer maps them to exit codes via ExitClass.
//
// WrapErrorWithSource augments a located error with a caret-annotated snippet
// of the entry's source text, in the style of
//
//	TYPING ERROR at 3:12: convertibility check failed
//
//	   3 | def bad : B := x.
//	     |            ^
//
// Errors without a location (or an empty source) pass through unchanged.

package dedukti

import (
	"fmt"
	"strings"
)

// Loc is a 1-based source position. The zero Loc means "unknown".
type Loc struct {
	Line int
	Col  int
}

func (l Loc) known() bool { return l.Line > 0 }

func (l Loc) String() string {
	if !l.known() {
		return "?"
	}
	return fmt.Sprintf("%d:%d", l.Line, l.Col)
}

// notUnifiableSig: the Miller solver met a bound variable outside the
// abstraction set. Control flow only.
type notUnifiableSig struct{}

/* ---------- term construction ---------- */

// UnshiftError: lowering a term hit a free index below the unshift amount.
type UnshiftError struct {
	Idx int
	By  int
}

func (e *UnshiftError) Error() string {
	return fmt.Sprintf("cannot unshift by %d: free variable #%d", e.By, e.Idx)
}

/* ---------- reduction ---------- */

// GuardError: a bracket guard was violated during rewriting. Fatal — a rule
// with a failing bracket must not be skipped silently.
type GuardError struct {
	Loc      Loc
	Found    *Term
	Expected *Term
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("BRACKET ERROR at %s: guard not satisfied: found '%s', expected '%s'",
		e.Loc, TermString(e.Found), TermString(e.Expected))
}

/* ---------- signature ---------- */

type SymbolNotFoundError struct {
	Loc  Loc
	Name QName
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("SIGNATURE ERROR at %s: symbol '%s' not found", e.Loc, e.Name)
}

type AlreadyDefinedError struct {
	Loc  Loc
	Name QName
}

func (e *AlreadyDefinedError) Error() string {
	return fmt.Sprintf("SIGNATURE ERROR at %s: symbol '%s' already defined", e.Loc, e.Name)
}

type StaticSymbolError struct {
	Loc  Loc
	Name QName
}

func (e *StaticSymbolError) Error() string {
	return fmt.Sprintf("SIGNATURE ERROR at %s: cannot add rewrite rules to static symbol '%s'", e.Loc, e.Name)
}

type ConfluenceError struct {
	Loc Loc
	Msg string
}

func (e *ConfluenceError) Error() string {
	return fmt.Sprintf("CONFLUENCE ERROR at %s: %s", e.Loc, e.Msg)
}

/* ---------- decision-tree compilation ---------- */

type HeadMismatchError struct {
	Loc  Loc
	Got  QName
	Want QName
}

func (e *HeadMismatchError) Error() string {
	return fmt.Sprintf("RULE ERROR at %s: rules mix head symbols '%s' and '%s'", e.Loc, e.Want, e.Got)
}

type ArityInnerMismatchError struct {
	Loc    Loc
	Name   QName
	Arity1 int
	Arity2 int
}

func (e *ArityInnerMismatchError) Error() string {
	return fmt.Sprintf("RULE ERROR at %s: symbol '%s' used at arities %d and %d in the same match column",
		e.Loc, e.Name, e.Arity1, e.Arity2)
}

/* ---------- typing ---------- */

type TypingCode int

const (
	KindIsNotTypable TypingCode = iota
	Convertibility
	VariableNotFound
	SortExpected
	ProductExpected
	InexpectedKind
	DomainFreeLambda
	CannotInferTypeOfPattern
	UnsatisfiableConstraints
	NotEnoughArguments
	KindLevelDefinition
)

var typingCodeText = map[TypingCode]string{
	KindIsNotTypable:         "Kind is not typable",
	Convertibility:           "convertibility check failed",
	VariableNotFound:         "variable not found",
	SortExpected:             "sort expected",
	ProductExpected:          "product expected",
	InexpectedKind:           "unexpected Kind",
	DomainFreeLambda:         "cannot infer the type of a domain-free lambda",
	CannotInferTypeOfPattern: "cannot infer the type of this pattern",
	UnsatisfiableConstraints: "unsatisfiable typing constraints",
	NotEnoughArguments:       "variable applied to fewer arguments than on the left-hand side",
	KindLevelDefinition:      "cannot define a symbol at the level of Kind",
}

// TypingError is the common shape of every typing-judgement failure. Which
// extra fields are set depends on Code:
//
//	Convertibility:     Term, Ctx, Expected, Inferred
//	VariableNotFound:   Var
//	ProductExpected:    Term, Inferred (the non-product type)
//	NotEnoughArguments: Var, Declared, Used
type TypingError struct {
	Code     TypingCode
	Loc      Loc
	Term     *Term
	Ctx      []string
	Expected *Term
	Inferred *Term
	Var      string
	Declared int
	Used     int
}

func (e *TypingError) Error() string {
	msg := typingCodeText[e.Code]
	var b strings.Builder
	fmt.Fprintf(&b, "TYPING ERROR at %s: %s", e.Loc, msg)
	switch e.Code {
	case Convertibility:
		fmt.Fprintf(&b, ": term '%s' has type '%s' but '%s' was expected",
			TermString(e.Term), TermString(e.Inferred), TermString(e.Expected))
	case VariableNotFound:
		fmt.Fprintf(&b, ": '%s'", e.Var)
	case ProductExpected:
		fmt.Fprintf(&b, ": '%s' has non-product type '%s'", TermString(e.Term), TermString(e.Inferred))
	case NotEnoughArguments:
		fmt.Fprintf(&b, ": '%s' declared at arity %d, used at arity %d", e.Var, e.Declared, e.Used)
	}
	return b.String()
}

/* ---------- patterns ---------- */

type PatternCode int

const (
	BoundVariableExpected PatternCode = iota
	VariableBoundOutsideTheGuard
	DistinctBoundVariablesExpected
	UnboundVariable
	AVariableIsNotAPattern
	NonLinearNonEqArguments
)

var patternCodeText = map[PatternCode]string{
	BoundVariableExpected:          "a bound variable was expected",
	VariableBoundOutsideTheGuard:   "variable bound outside the guard",
	DistinctBoundVariablesExpected: "distinct bound variables expected",
	UnboundVariable:                "unbound variable",
	AVariableIsNotAPattern:         "a variable is not a pattern",
	NonLinearNonEqArguments:        "non-linear variable applied to different argument lists",
}

type PatternError struct {
	Code PatternCode
	Loc  Loc
	Var  string
}

func (e *PatternError) Error() string {
	msg := patternCodeText[e.Code]
	if e.Var != "" {
		return fmt.Sprintf("PATTERN ERROR at %s: %s: '%s'", e.Loc, msg, e.Var)
	}
	return fmt.Sprintf("PATTERN ERROR at %s: %s", e.Loc, msg)
}

/* ---------- tooling classification ---------- */

// ExitClass maps a core error to the conventional tool exit code: 3 for
// typing/signature/rule failures, 42 for anything else. The I/O class (1)
// belongs to the tooling layer, which never hands its errors to this func.
func ExitClass(err error) int {
	switch err.(type) {
	case *TypingError, *PatternError, *SymbolNotFoundError, *AlreadyDefinedError,
		*StaticSymbolError, *ConfluenceError, *HeadMismatchError,
		*ArityInnerMismatchError, *GuardError, *UnshiftError:
		return 3
	default:
		return 42
	}
}

/* ---------- caret snippets ---------- */

// errLoc extracts the location of any core error, if it has one.
func errLoc(err error) Loc {
	switch e := err.(type) {
	case *GuardError:
		return e.Loc
	case *SymbolNotFoundError:
		return e.Loc
	case *AlreadyDefinedError:
		return e.Loc
	case *StaticSymbolError:
		return e.Loc
	case *ConfluenceError:
		return e.Loc
	case *HeadMismatchError:
		return e.Loc
	case *ArityInnerMismatchError:
		return e.Loc
	case *TypingError:
		return e.Loc
	case *PatternError:
		return e.Loc
	}
	return Loc{}
}

// WrapErrorWithSource returns err augmented with a caret-annotated snippet of
// src. Errors without a known location, or an empty src, pass through.
func WrapErrorWithSource(err error, src string) error {
	if err == nil || src == "" {
		return err
	}
	loc := errLoc(err)
	if !loc.known() {
		return err
	}
	lines := strings.Split(src, "\n")
	if loc.Line > len(lines) {
		return err
	}
	line := lines[loc.Line-1]
	col := loc.Col
	if col < 1 {
		col = 1
	}
	if col > len(line)+1 {
		col = len(line) + 1
	}
	var b strings.Builder
	b.WriteString(err.Error())
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%4d | %s\n", loc.Line, line)
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	return fmt.Errorf("%s", b.String())
}
