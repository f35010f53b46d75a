package commission

import (
	"context"
	"sync"
)

// Resolver picks the applicable rule for a transaction context with
// project → industry → default precedence. Resolution never comes back
// empty: a resolver cannot be built without the default rule.
type Resolver struct {
	mu    sync.RWMutex
	rules map[scopeKey]Rule
}

type scopeKey struct {
	industry string
	project  string
}

// NewResolver validates every rule and requires the global default.
// A missing default is a deployment error, surfaced here rather than on
// some later per-transaction path.
func NewResolver(rules []Rule) (*Resolver, error) {
	r := &Resolver{rules: make(map[scopeKey]Rule, len(rules))}
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		r.rules[scopeKey{rule.Industry, rule.Project}] = rule
	}
	if _, ok := r.rules[scopeKey{industry: DefaultIndustry}]; !ok {
		return nil, ErrNoDefaultRule
	}
	return r, nil
}

// Resolve returns the narrowest applicable rule.
func (r *Resolver) Resolve(ctx context.Context, industry, project string) Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if project != "" {
		if rule, ok := r.rules[scopeKey{industry, project}]; ok {
			return rule
		}
	}
	if rule, ok := r.rules[scopeKey{industry: industry}]; ok {
		return rule
	}
	return r.rules[scopeKey{industry: DefaultIndustry}]
}

// Upsert validates and installs a rule, replacing any rule with the same
// scope. The default rule can be replaced but never removed.
func (r *Resolver) Upsert(ctx context.Context, rule Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[scopeKey{rule.Industry, rule.Project}] = rule
	return nil
}

// List returns all installed rules.
func (r *Resolver) List(ctx context.Context) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	return out
}
