// signature.go — the global signature: symbols, staticity, compiled trees.
//
// The signature only ever grows: a symbol is declared once and its rule set
// is extended by whole batches, each batch recompiling the symbol's merged
// decision tree. Nothing is deleted or retyped, which is what makes earlier
// typing judgements stable under extension.
//
// Confluence of the extended rewrite system is not checked here; an external
// oracle can be plugged in and a failing oracle makes AddRules fail before
// the signature is touched.

package dedukti

type Staticity uint8

const (
	Static Staticity = iota
	Definable
)

func (s Staticity) String() string {
	if s == Static {
		return "static"
	}
	return "definable"
}

// ConfluenceOracle vets a prospective rule batch against the signature it
// would extend. A nil oracle accepts everything.
type ConfluenceOracle func(sg *Signature, batch []*Rule) error

type symbolRec struct {
	name      QName
	loc       Loc
	staticity Staticity
	typ       *Term
	rules     []*Rule
	pivot     int
	tree      *DTree
}

// Signature maps qualified names to declarations and compiled rule trees.
// Not safe for concurrent mutation; the façade serialises all access.
type Signature struct {
	name       string
	table      map[QName]*symbolRec
	confluence ConfluenceOracle
}

func NewSignature(name string) *Signature {
	return &Signature{name: name, table: map[QName]*symbolRec{}}
}

// Name is the module name of the signature under construction.
func (sg *Signature) Name() string { return sg.name }

// SetConfluenceOracle installs the external confluence checker consulted by
// AddRules. Passing nil removes it.
func (sg *Signature) SetConfluenceOracle(o ConfluenceOracle) { sg.confluence = o }

// resolve fills an empty module qualifier with the current module name.
func (sg *Signature) resolve(q QName) QName {
	if q.Mod == "" {
		q.Mod = sg.name
	}
	return q
}

func (sg *Signature) get(loc Loc, q QName) (*symbolRec, error) {
	rec, ok := sg.table[sg.resolve(q)]
	if !ok {
		return nil, &SymbolNotFoundError{Loc: loc, Name: q}
	}
	return rec, nil
}

// GetType returns the declared type of q.
func (sg *Signature) GetType(loc Loc, q QName) (*Term, error) {
	rec, err := sg.get(loc, q)
	if err != nil {
		return nil, err
	}
	return rec.typ, nil
}

// GetStaticity returns the staticity of q, defaulting to Static for unknown
// symbols (the caller will fail on GetType anyway).
func (sg *Signature) GetStaticity(q QName) Staticity {
	if rec, ok := sg.table[sg.resolve(q)]; ok {
		return rec.staticity
	}
	return Static
}

// GetDTree returns the compiled tree of q and its pivot arity, if any rules
// are attached.
func (sg *Signature) GetDTree(q QName) (pivot int, tree *DTree, ok bool) {
	rec, found := sg.table[sg.resolve(q)]
	if !found || rec.tree == nil {
		return 0, nil, false
	}
	return rec.pivot, rec.tree, true
}

// GetDTreeFiltered compiles, on the fly, the tree restricted to rules whose
// name satisfies pred. Used by selector-driven reduction; the unfiltered tree
// cache is left untouched.
func (sg *Signature) GetDTreeFiltered(q QName, pred func(QName) bool) (int, *DTree, bool) {
	rec, found := sg.table[sg.resolve(q)]
	if !found || len(rec.rules) == 0 {
		return 0, nil, false
	}
	var kept []*Rule
	for _, r := range rec.rules {
		if pred(r.Name) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return 0, nil, false
	}
	pivot, tree, err := CompileRules(kept, sg.GetStaticity)
	if err != nil {
		// the full set compiled, so any filtered subset does too
		panic("GetDTreeFiltered: " + err.Error())
	}
	return pivot, tree, true
}

// Rules returns the rules attached to q, in compilation order.
func (sg *Signature) Rules(q QName) []*Rule {
	if rec, ok := sg.table[sg.resolve(q)]; ok {
		return rec.rules
	}
	return nil
}

// AddDeclaration extends the signature with a new symbol.
func (sg *Signature) AddDeclaration(loc Loc, q QName, st Staticity, typ *Term) error {
	q = sg.resolve(q)
	if _, dup := sg.table[q]; dup {
		return &AlreadyDefinedError{Loc: loc, Name: q}
	}
	sg.table[q] = &symbolRec{name: q, loc: loc, staticity: st, typ: typ}
	return nil
}

// AddRules attaches a batch of typed rules to their shared head symbol and
// recompiles the merged decision tree. The signature is untouched on any
// failure, including a rejecting confluence oracle.
func (sg *Signature) AddRules(rules []*Rule) error {
	if len(rules) == 0 {
		return nil
	}
	loc := rules[0].Loc
	head := sg.resolve(rules[0].HeadSym)
	rec, err := sg.get(loc, head)
	if err != nil {
		return err
	}
	if rec.staticity == Static {
		return &StaticSymbolError{Loc: loc, Name: head}
	}
	merged := make([]*Rule, 0, len(rec.rules)+len(rules))
	merged = append(merged, rec.rules...)
	merged = append(merged, rules...)
	pivot, tree, err := CompileRules(merged, sg.GetStaticity)
	if err != nil {
		return err
	}
	if sg.confluence != nil {
		if err := sg.confluence(sg, rules); err != nil {
			return &ConfluenceError{Loc: loc, Msg: err.Error()}
		}
	}
	rec.rules = merged
	rec.pivot = pivot
	rec.tree = tree
	return nil
}

// importRecord installs a symbol loaded from a compiled signature file,
// recompiling its tree locally. Used by dump.go.
func (sg *Signature) importRecord(q QName, st Staticity, typ *Term, rules []*Rule) error {
	if _, dup := sg.table[q]; dup {
		return &AlreadyDefinedError{Name: q}
	}
	rec := &symbolRec{name: q, staticity: st, typ: typ}
	sg.table[q] = rec
	if len(rules) > 0 {
		pivot, tree, err := CompileRules(rules, sg.GetStaticity)
		if err != nil {
			delete(sg.table, q)
			return err
		}
		rec.rules, rec.pivot, rec.tree = rules, pivot, tree
	}
	return nil
}
