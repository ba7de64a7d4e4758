package auth

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Access is the outcome of matching a path against the policy.
type Access string

const (
	AccessPublic    Access = "public"
	AccessProtected Access = "protected"
)

// MatchKind selects how a rule compares paths.
type MatchKind string

const (
	MatchExact  MatchKind = "exact"
	MatchPrefix MatchKind = "prefix"
)

// Rule is one entry of the gate policy.
type Rule struct {
	Path   string    `yaml:"path"`
	Match  MatchKind `yaml:"match"`
	Access Access    `yaml:"access"`
}

// Matches reports whether path falls under the rule.
func (r Rule) Matches(path string) bool {
	if r.Match == MatchPrefix {
		return strings.HasPrefix(path, r.Path)
	}
	return path == r.Path
}

// String renders the rule in its compact form.
func (r Rule) String() string {
	s := r.Path
	if r.Match == MatchPrefix {
		s += "*"
	}
	if r.Access == AccessProtected {
		s = "!" + s
	}
	return s
}

// Policy is an ordered rule list evaluated top to bottom; the first match wins
// and a path matching no rule is protected.
type Policy struct {
	rules []Rule
}

// NewPolicy validates rules and builds a policy.
func NewPolicy(rules []Rule) (*Policy, error) {
	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if r.Match == "" {
			r.Match = MatchExact
		}
		if r.Access == "" {
			r.Access = AccessPublic
		}
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("rule %d: path %q must start with /", i, r.Path)
		}
		if r.Match != MatchExact && r.Match != MatchPrefix {
			return nil, fmt.Errorf("rule %d: unknown match %q", i, r.Match)
		}
		if r.Access != AccessPublic && r.Access != AccessProtected {
			return nil, fmt.Errorf("rule %d: unknown access %q", i, r.Access)
		}
		out = append(out, r)
	}
	return &Policy{rules: out}, nil
}

// ParseRules parses the compact form used in AUTH_EXEMPT_PATHS:
// "/auth/login" is an exact public rule, "/health/*" a prefix public rule,
// and a leading "!" marks the rule protected.
func ParseRules(specs []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		r := Rule{Match: MatchExact, Access: AccessPublic}
		if strings.HasPrefix(spec, "!") {
			r.Access = AccessProtected
			spec = spec[1:]
		}
		if strings.HasSuffix(spec, "*") {
			r.Match = MatchPrefix
			spec = strings.TrimSuffix(spec, "*")
		}
		if spec == "" {
			return nil, fmt.Errorf("empty path in rule")
		}
		r.Path = spec
		rules = append(rules, r)
	}
	return rules, nil
}

type policyFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadPolicyFile reads an ordered rule list from a YAML document of the form
//
//	rules:
//	  - path: /auth/login
//	    match: exact
//	    access: public
func LoadPolicyFile(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var doc policyFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	return NewPolicy(doc.Rules)
}

// Classify returns the access of the first rule matching path.
func (p *Policy) Classify(path string) Access {
	if p == nil {
		return AccessProtected
	}
	for _, r := range p.rules {
		if r.Matches(path) {
			return r.Access
		}
	}
	return AccessProtected
}

// Rules returns a copy of the ordered rule list.
func (p *Policy) Rules() []Rule {
	if p == nil {
		return nil
	}
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}
