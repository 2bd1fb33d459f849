package ratelimit

import (
	"strings"
)

// unlimited lists GET paths that are never rate limited.
var unlimited = map[string]bool{
	"/health": true,
}

// MatchEndpoint matches a request path and method to an endpoint configuration.
// An exact path wins; otherwise the longest configured prefix ending in "/"
// is used. Returns nil when nothing matches.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if method == "GET" && unlimited[path] {
		return &EndpointConfig{Path: path, Method: method}
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			if best == nil || len(c.Path) > len(best.Path) {
				best = c
			}
		}
	}
	return best
}
