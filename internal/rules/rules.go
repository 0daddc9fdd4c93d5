package rules

import (
	"sync"
)

// Rule is a platform-supplied condition/action pair. The condition is an
// expression evaluated by an external matcher; the action is an opaque
// command body published when the condition holds.
type Rule struct {
	ID     string         `json:"id,omitempty"`
	Rule   map[string]any `json:"rule"`
	Action map[string]any `json:"action"`
}

// Matcher decides whether a rule's condition holds for a data point.
// Evaluation is delegated so the cache stays independent of any particular
// expression language.
type Matcher interface {
	Matches(condition map[string]any, data map[string]any) (bool, error)
}

// Cache holds the device-local copy of platform rules.
//
// Refresh replaces the whole set; rules are never merged or patched
// individually. The cache is safe for concurrent use by the dispatch core
// and the telemetry publisher.
type Cache struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewCache creates an empty rule cache.
func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps in a fresh rule set, discarding the previous one.
func (c *Cache) Replace(rules []Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = make([]Rule, len(rules))
	copy(c.rules, rules)
}

// Snapshot returns a copy of the current rule set in platform order.
func (c *Cache) Snapshot() []Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Len reports the number of cached rules.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}

// Match runs every cached rule's condition against the data point and
// returns the rules that fired, in platform order. A matcher error on one
// rule skips that rule; the rest still run.
func (c *Cache) Match(matcher Matcher, data map[string]any, onError func(rule Rule, err error)) []Rule {
	var fired []Rule
	for _, rule := range c.Snapshot() {
		ok, err := matcher.Matches(rule.Rule, data)
		if err != nil {
			if onError != nil {
				onError(rule, err)
			}
			continue
		}
		if ok {
			fired = append(fired, rule)
		}
	}
	return fired
}
