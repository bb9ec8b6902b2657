package dedukti

import "testing"

func Test_Config_Defaults(t *testing.T) {
	cfg, err := (*RunConfig)(nil).ReductionConfig()
	if err != nil {
		t.Fatalf("ReductionConfig: %v", err)
	}
	if !cfg.Beta || cfg.Target != TargetSnf || cfg.Strategy != ByName || cfg.StepLimit != -1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func Test_Config_LoadYAML(t *testing.T) {
	doc := []byte("beta: false\ntarget: whnf\nstrategy: byvalue\nsteps: 7\nrules: [test.plus_z]\n")
	rc, err := LoadRunConfig(doc)
	if err != nil {
		t.Fatalf("LoadRunConfig: %v", err)
	}
	cfg, err := rc.ReductionConfig()
	if err != nil {
		t.Fatalf("ReductionConfig: %v", err)
	}
	if cfg.Beta || cfg.Target != TargetWhnf || cfg.Strategy != ByValue || cfg.StepLimit != 7 {
		t.Fatalf("lowered config wrong: %+v", cfg)
	}
	if cfg.Selector == nil || !cfg.Selector(qn("plus_z")) || cfg.Selector(qn("plus_s")) {
		t.Fatalf("selector must admit exactly the listed rules")
	}
}

func Test_Config_BadValuesRejected(t *testing.T) {
	if _, err := LoadRunConfig([]byte("target: sideways\n")); err == nil {
		t.Fatalf("unknown target must be rejected")
	}
	if _, err := LoadRunConfig([]byte("steps: -4\n")); err == nil {
		t.Fatalf("negative step limit must be rejected")
	}
}

func Test_Config_SelectorRestrictsReduction(t *testing.T) {
	env := natEnv(t)
	rc := &RunConfig{Rules: []string{"test.plus_z"}}
	cfg, err := rc.ReductionConfig()
	if err != nil {
		t.Fatalf("ReductionConfig: %v", err)
	}
	// plus_s filtered out: plus (s z) m is stuck
	tm := App(Cst(qn("plus")), church(1), church(1))
	got, err := Reduce(env.Signature(), cfg, tm)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	wantEq(t, got, tm)
}
