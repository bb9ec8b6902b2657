// config.go — serialisable reduction options.
//
// RunConfig is the YAML/JSON-facing mirror of ReductionConfig: everything a
// query or a dkcheck run can tune, minus the callbacks. Missing fields keep
// their defaults, so a config file only states what it changes.

package dedukti

import (
	"fmt"

	"github.com/hashicorp/go-set/v2"
	"gopkg.in/yaml.v3"
)

// RunConfig is loaded from YAML (LoadRunConfig) or carried inline on query
// entries. Rules, when non-empty, restricts rewriting to the named rules.
type RunConfig struct {
	Beta     *bool    `yaml:"beta" json:"beta,omitempty"`
	Target   string   `yaml:"target" json:"target,omitempty"`     // "whnf" | "snf"
	Strategy string   `yaml:"strategy" json:"strategy,omitempty"` // "byname" | "byvalue" | "bystrongvalue"
	Steps    *int     `yaml:"steps" json:"steps,omitempty"`
	Rules    []string `yaml:"rules" json:"rules,omitempty"`
}

func LoadRunConfig(data []byte) (*RunConfig, error) {
	var c RunConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("run config: %w", err)
	}
	if _, err := c.ReductionConfig(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ReductionConfig lowers the serialisable form to the reducer's record.
func (c *RunConfig) ReductionConfig() (ReductionConfig, error) {
	cfg := DefaultReductionConfig()
	if c == nil {
		return cfg, nil
	}
	if c.Beta != nil {
		cfg.Beta = *c.Beta
	}
	switch c.Target {
	case "", "snf":
		cfg.Target = TargetSnf
	case "whnf":
		cfg.Target = TargetWhnf
	default:
		return cfg, fmt.Errorf("run config: unknown target %q", c.Target)
	}
	switch c.Strategy {
	case "", "byname":
		cfg.Strategy = ByName
	case "byvalue":
		cfg.Strategy = ByValue
	case "bystrongvalue":
		cfg.Strategy = ByStrongValue
	default:
		return cfg, fmt.Errorf("run config: unknown strategy %q", c.Strategy)
	}
	if c.Steps != nil {
		if *c.Steps < 0 {
			return cfg, fmt.Errorf("run config: negative step limit")
		}
		cfg.StepLimit = *c.Steps
	}
	if len(c.Rules) > 0 {
		names := set.From(c.Rules)
		cfg.Selector = func(q QName) bool { return names.Contains(q.String()) }
	}
	return cfg, nil
}
