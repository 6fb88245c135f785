// Package classifier maps raw activity identities, either page URLs or
// foreground process names, to canonical AI service names.
package classifier

import (
	"net/url"
	"strings"
)

// Kind selects how a raw identity is normalized before matching.
type Kind string

const (
	// KindWeb identities are URLs. Matching runs against the host with a
	// leading "www." removed.
	KindWeb Kind = "web"
	// KindProcess identities are application or process names.
	KindProcess Kind = "process"
)

// Rule maps any identity containing Match to Service.
type Rule struct {
	Match   string `yaml:"match"`
	Service string `yaml:"service"`
}

// Override is evaluated after the rule table. For web identities Host must
// equal the normalized host and PathContains must appear in the path. For
// process identities Contains must appear in the name. A Fallback override
// only applies when no rule matched; otherwise it replaces the table result.
type Override struct {
	Host         string `yaml:"host,omitempty"`
	PathContains string `yaml:"path_contains,omitempty"`
	Contains     string `yaml:"contains,omitempty"`
	Service      string `yaml:"service"`
	Fallback     bool   `yaml:"fallback,omitempty"`
}

type Classifier struct {
	kind      Kind
	rules     []Rule
	overrides []Override
}

// New builds a classifier. Rule order is preserved: the first matching rule
// wins.
func New(kind Kind, rules []Rule, overrides []Override) *Classifier {
	c := &Classifier{kind: kind}
	for _, r := range rules {
		r.Match = c.normalizeKey(r.Match)
		if r.Match == "" || r.Service == "" {
			continue
		}
		c.rules = append(c.rules, r)
	}
	for _, o := range overrides {
		if o.Service == "" {
			continue
		}
		o.Host = stripWWW(strings.ToLower(o.Host))
		c.overrides = append(c.overrides, o)
	}
	return c
}

func (c *Classifier) Kind() Kind {
	return c.kind
}

// Classify returns the canonical service for raw, or false when the identity
// is not a known AI service.
func (c *Classifier) Classify(raw string) (string, bool) {
	subject, path, ok := c.normalize(raw)
	if !ok {
		return "", false
	}

	service := ""
	for _, r := range c.rules {
		if strings.Contains(subject, r.Match) {
			service = r.Service
			break
		}
	}

	for _, o := range c.overrides {
		if o.Fallback && service != "" {
			continue
		}
		if c.overrideMatches(o, subject, path) {
			service = o.Service
			break
		}
	}
	return service, service != ""
}

func (c *Classifier) overrideMatches(o Override, subject, path string) bool {
	if c.kind == KindWeb {
		if o.Host != "" && o.Host != subject {
			return false
		}
		if o.PathContains != "" && !strings.Contains(path, o.PathContains) {
			return false
		}
		return o.Host != "" || o.PathContains != ""
	}
	return o.Contains != "" && strings.Contains(subject, o.Contains)
}

func (c *Classifier) normalize(raw string) (subject, path string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}
	if c.kind == KindProcess {
		return raw, "", true
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", "", false
	}
	return stripWWW(strings.ToLower(u.Hostname())), u.Path, true
}

func (c *Classifier) normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if c.kind == KindProcess {
		key = strings.TrimSuffix(key, ".app")
		return strings.TrimSuffix(key, ".exe")
	}
	return stripWWW(strings.ToLower(key))
}

func stripWWW(host string) string {
	return strings.TrimPrefix(host, "www.")
}
