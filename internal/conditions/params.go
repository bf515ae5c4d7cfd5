package conditions

// params.go — typed parameter lists for condition identifiers.

import (
	"sort"
	"strings"
)

// Param is one key/value argument to a condition identifier.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list, sorted by key. Catalog.Params builds
// one from a map after checking every key against the identifier.
type Params []Param

func newParams(values map[string]string) Params {
	p := make(Params, 0, len(values))
	for k, v := range values {
		p = append(p, Param{Key: k, Value: v})
	}
	sort.Slice(p, func(i, j int) bool { return p[i].Key < p[j].Key })
	return p
}

// Get returns the value stored under key.
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Keys returns the parameter keys in order.
func (p Params) Keys() []string {
	keys := make([]string, len(p))
	for i, kv := range p {
		keys[i] = kv.Key
	}
	return keys
}

// String renders the list as "k=v, k=v".
func (p Params) String() string {
	parts := make([]string, len(p))
	for i, kv := range p {
		parts[i] = kv.Key + "=" + kv.Value
	}
	return strings.Join(parts, ", ")
}
