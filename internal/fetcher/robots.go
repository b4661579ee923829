package fetcher

import (
	"bufio"
	"strings"
	"sync"
)

// robotsRules are the Disallow prefixes that apply to this client.
type robotsRules struct {
	disallow []string
}

// allows reports whether path may be fetched.
func (r robotsRules) allows(path string) bool {
	if path == "" {
		path = "/"
	}
	for _, prefix := range r.disallow {
		if prefix == "/" || strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// productToken lowercases agent and strips any "/version" suffix.
func productToken(agent string) string {
	token, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(agent)), "/")
	return token
}

// parseRobots reads User-agent/Disallow groups. A group naming botToken's
// product token exactly wins over the wildcard group; other directives
// are ignored.
func parseRobots(body, botToken string) robotsRules {
	botToken = productToken(botToken)
	var (
		wildcard, specific []string
		hasSpecific        bool
		agents             []string
		inRules            bool
	)

	apply := func(value string) {
		for _, agent := range agents {
			switch {
			case agent == "*":
				wildcard = append(wildcard, value)
			case botToken != "" && agent == botToken:
				specific = append(specific, value)
			}
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if inRules {
				agents = nil
				inRules = false
			}
			agent := productToken(value)
			agents = append(agents, agent)
			if botToken != "" && agent == botToken {
				hasSpecific = true
			}
		case "disallow":
			inRules = true
			if value != "" {
				apply(value)
			}
		default:
			inRules = true
		}
	}

	if hasSpecific {
		return robotsRules{disallow: specific}
	}
	return robotsRules{disallow: wildcard}
}

type robotsKey struct {
	origin string
	day    string
}

// robotsCache keeps one decision per origin per calendar day.
type robotsCache struct {
	mu    sync.Mutex
	rules map[robotsKey]robotsRules
}

func newRobotsCache() *robotsCache {
	return &robotsCache{rules: make(map[robotsKey]robotsRules)}
}

func (c *robotsCache) get(origin, day string) (robotsRules, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rules[robotsKey{origin: origin, day: day}]
	return r, ok
}

func (c *robotsCache) put(origin, day string, rules robotsRules) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.rules {
		if k.origin == origin && k.day != day {
			delete(c.rules, k)
		}
	}
	c.rules[robotsKey{origin: origin, day: day}] = rules
}
