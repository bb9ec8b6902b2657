// entry.go — the abstract entry stream processed by the environment façade.
//
// An entry is one module-level item as delivered by an external parser:
// signature extensions (Decl, Def, Rules) or queries (Eval, Infer, Check,
// DTree, Print) plus module plumbing (Name, Require). The stream shape is
// deliberately dumb data — every field is serialisable, so a JSON-encoded
// stream is the concrete exchange format of the dkcheck driver.

package dedukti

type EntryKind uint8

const (
	EDecl EntryKind = iota
	EDef
	ERules
	EEval
	EInfer
	ECheck
	EDTree
	EPrint
	EName
	ERequire
)

type AssertKind uint8

const (
	AssertConvert AssertKind = iota
	AssertHasType
)

// Entry is one item of the stream. Meaningful fields per kind:
//
//	EDecl:    Name, Staticity, Type
//	EDef:     Name, Opaque, Type (optional), Body
//	ERules:   Rules
//	EEval:    Body, Cfg (optional)
//	EInfer:   Body, Cfg (optional)
//	ECheck:   CheckKind, Assert, Negate, Body, T2 (term or expected type)
//	EDTree:   Name
//	EPrint:   Text
//	EName:    Text (the module name)
//	ERequire: Text (the module to load)
type Entry struct {
	Kind      EntryKind
	Loc       Loc
	Name      QName
	Staticity Staticity
	Opaque    bool
	Type      *Term
	Body      *Term
	T2        *Term
	Rules     []*PreRule
	Cfg       *RunConfig
	CheckKind AssertKind
	Assert    bool
	Negate    bool
	Text      string
}
