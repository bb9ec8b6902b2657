// env.go — PUBLIC FAÇADE of the checker.
//
// OVERVIEW
// ========
// Env serialises the processing of an entry stream against one growing
// signature. It is the only coordination point between the subsystems: the
// typing judgement (typing.go), pattern elaboration (pattern_typing.go), the
// rule compiler (dtree.go via signature.go) and the reducer (reduce.go). All
// processing is single-threaded; an Env must not be shared across goroutines.
//
// ENTRY SEMANTICS
// ---------------
//   - Decl extends the signature after checking the declared type is
//     well-sorted.
//   - Def is a declaration plus, unless opaque, one δ-named rewrite rule
//     whose LHS is the constant and whose RHS is the body. A definition
//     whose type would be Kind is rejected (KindLevelDefinition).
//   - Rules type-checks every rule, then hands each head-symbol group to the
//     signature, which recompiles the merged decision tree and consults the
//     confluence oracle.
//   - Eval, Infer, Check/Assert, DTree and Print are queries: they never
//     mutate the signature. Their output goes to Out (default: discard), one
//     line per query (DTree: the tree's multi-line outline), in the
//     printer's deterministic syntax.
//   - Name fixes the module name; Require loads a compiled signature file
//     (dump.go) found on the load path.
//
// ERRORS
// ------
// Process returns core errors unchanged (§ errors.go); callers that hold the
// entry's source text can wrap them with WrapErrorWithSource. A false result
// of an Assert entry is itself an error, so a failing assertion stops a
// stream exactly like an ill-typed definition.

package dedukti

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Env is the entry-processing environment: a signature under construction
// plus query plumbing.
type Env struct {
	sg *Signature

	// Out receives query results (Eval, Infer, non-assert Check, DTree,
	// Print), one line each except DTree, which writes a multi-line outline.
	Out io.Writer

	// LoadPath lists the directories Require searches for compiled
	// signature files ("<module>.dko").
	LoadPath []string

	loaded map[string]bool
}

func NewEnv(module string) *Env {
	return &Env{
		sg:     NewSignature(module),
		Out:    io.Discard,
		loaded: map[string]bool{},
	}
}

// Signature exposes the signature being built (read-side use only).
func (e *Env) Signature() *Signature { return e.sg }

// SetConfluenceOracle forwards to the signature.
func (e *Env) SetConfluenceOracle(o ConfluenceOracle) { e.sg.SetConfluenceOracle(o) }

// ProcessAll runs a whole stream, stopping at the first failure.
func (e *Env) ProcessAll(entries []*Entry) error {
	for _, entry := range entries {
		if err := e.Process(entry); err != nil {
			return err
		}
	}
	return nil
}

// Process executes one entry.
func (e *Env) Process(entry *Entry) error {
	switch entry.Kind {
	case EDecl:
		return e.declare(entry)
	case EDef:
		return e.define(entry)
	case ERules:
		return e.addRules(entry)
	case EEval:
		return e.eval(entry)
	case EInfer:
		return e.inferQuery(entry)
	case ECheck:
		return e.checkQuery(entry)
	case EDTree:
		return e.dtreeQuery(entry)
	case EPrint:
		fmt.Fprintln(e.Out, entry.Text)
		return nil
	case EName:
		e.sg.name = entry.Text
		return nil
	case ERequire:
		return e.require(entry)
	}
	return fmt.Errorf("unknown entry kind %d", entry.Kind)
}

func (e *Env) declare(entry *Entry) error {
	if err := checkSorted(e.sg, entry.Loc, entry.Type); err != nil {
		return err
	}
	return e.sg.AddDeclaration(entry.Loc, entry.Name, entry.Staticity, entry.Type)
}

func (e *Env) define(entry *Entry) error {
	var defTy *Term
	if entry.Type != nil {
		if err := checkSorted(e.sg, entry.Loc, entry.Type); err != nil {
			return err
		}
		if err := Check(e.sg, entry.Loc, nil, entry.Body, entry.Type); err != nil {
			return err
		}
		defTy = entry.Type
	} else {
		ty, err := Infer(e.sg, entry.Loc, nil, entry.Body)
		if err != nil {
			return err
		}
		defTy = ty
	}
	if w, err := Whnf(e.sg, defTy); err != nil {
		return err
	} else if w.Tag == TKind {
		return &TypingError{Code: KindLevelDefinition, Loc: entry.Loc, Term: entry.Body}
	}

	st := Definable
	if entry.Opaque {
		st = Static
	}
	if err := e.sg.AddDeclaration(entry.Loc, entry.Name, st, defTy); err != nil {
		return err
	}
	if entry.Opaque {
		return nil
	}
	delta := &PreRule{
		Loc:  entry.Loc,
		Name: QName{Mod: e.sg.Name(), ID: fmt.Sprintf("delta_%s", entry.Name.ID)},
		LHS:  PatConst(entry.Name),
		RHS:  entry.Body,
	}
	rule, err := CheckRule(e.sg, delta)
	if err != nil {
		return err
	}
	return e.sg.AddRules([]*Rule{rule})
}

func (e *Env) addRules(entry *Entry) error {
	checked := make([]*Rule, 0, len(entry.Rules))
	for _, pre := range entry.Rules {
		r, err := CheckRule(e.sg, pre)
		if err != nil {
			return err
		}
		checked = append(checked, r)
	}
	// one batch per head symbol, in first-appearance order
	order := []QName{}
	groups := map[QName][]*Rule{}
	for _, r := range checked {
		if _, seen := groups[r.HeadSym]; !seen {
			order = append(order, r.HeadSym)
		}
		groups[r.HeadSym] = append(groups[r.HeadSym], r)
	}
	for _, head := range order {
		if err := e.sg.AddRules(groups[head]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Env) eval(entry *Entry) error {
	cfg, err := entry.Cfg.ReductionConfig()
	if err != nil {
		return err
	}
	res, err := Reduce(e.sg, cfg, entry.Body)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.Out, TermString(res))
	return nil
}

func (e *Env) inferQuery(entry *Entry) error {
	ty, err := Infer(e.sg, entry.Loc, nil, entry.Body)
	if err != nil {
		return err
	}
	if entry.Cfg != nil {
		cfg, cerr := entry.Cfg.ReductionConfig()
		if cerr != nil {
			return cerr
		}
		if ty, err = Reduce(e.sg, cfg, ty); err != nil {
			return err
		}
	}
	fmt.Fprintln(e.Out, TermString(ty))
	return nil
}

func (e *Env) checkQuery(entry *Entry) error {
	var holds bool
	switch entry.CheckKind {
	case AssertConvert:
		conv, err := AreConvertible(e.sg, entry.Body, entry.T2)
		if err != nil {
			return err
		}
		holds = conv
	case AssertHasType:
		err := Check(e.sg, entry.Loc, nil, entry.Body, entry.T2)
		if err != nil {
			if _, isTyping := err.(*TypingError); !isTyping {
				return err
			}
			holds = false
		} else {
			holds = true
		}
	}
	if entry.Negate {
		holds = !holds
	}
	if entry.Assert {
		if !holds {
			return &TypingError{
				Code: Convertibility, Loc: entry.Loc,
				Term: entry.Body, Expected: entry.T2,
			}
		}
		return nil
	}
	if holds {
		fmt.Fprintln(e.Out, "YES")
	} else {
		fmt.Fprintln(e.Out, "NO")
	}
	return nil
}

func (e *Env) dtreeQuery(entry *Entry) error {
	pivot, tree, ok := e.sg.GetDTree(entry.Name)
	if !ok {
		return &SymbolNotFoundError{Loc: entry.Loc, Name: entry.Name}
	}
	fmt.Fprint(e.Out, DTreeString(pivot, tree))
	return nil
}

func (e *Env) require(entry *Entry) error {
	mod := entry.Text
	if e.loaded[mod] {
		return nil
	}
	for _, dir := range e.LoadPath {
		path := filepath.Join(dir, mod+dumpExt)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := LoadSignatureDump(e.sg, data); err != nil {
			return err
		}
		e.loaded[mod] = true
		return nil
	}
	return fmt.Errorf("require %s: no compiled signature found on the load path", mod)
}

// checkSorted verifies that a declared type inhabits a sort.
func checkSorted(sg *Signature, loc Loc, ty *Term) error {
	sort, err := Infer(sg, loc, nil, ty)
	if err != nil {
		return err
	}
	w, err := Whnf(sg, sort)
	if err != nil {
		return err
	}
	if w.Tag != TType && w.Tag != TKind {
		return &TypingError{Code: SortExpected, Loc: loc, Term: ty, Inferred: sort}
	}
	return nil
}
