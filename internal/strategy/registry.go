package strategy

import (
	"fmt"
	"sort"
	"strings"
)

// The strategy set is closed and checked at compile time: a config string
// maps to a factory here instead of reflective class loading.
var factories = map[string]func() Features{
	"volatility": func() Features { return VolatilityFeatures{} },
	"trend":      func() Features { return TrendFeatures{} },
}

// NewFeatures builds the feature strategy registered under id. An empty id
// selects the default "volatility" strategy.
func NewFeatures(id string) (Features, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if key == "" {
		key = "volatility"
	}
	factory, ok := factories[key]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (registered: %s)", id, strings.Join(Registered(), ", "))
	}
	return factory(), nil
}

// Registered lists the registered strategy identifiers, sorted.
func Registered() []string {
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
