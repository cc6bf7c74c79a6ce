// Package featureflags evaluates runtime toggles from FEATURE_FLAGS.
package featureflags

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	LiveFeed  = "live_feed"
	Donations = "donations"
)

// Manager evaluates feature flags defined in a simple key=value list.
// Example: "live_feed=on,donations=off,new_patterns=25%"
type Manager struct {
	flags map[string]string
}

// NewManager creates a feature-flag manager from a comma-separated config string.
func NewManager(raw string) *Manager {
	out := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := normalize(parts[0])
		value := normalize(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled reports whether a flag is on for subject, usually an actor key
// such as "bot:<id>" or a client IP for anonymous callers.
// Supported values:
// - on/true/1
// - off/false/0
// - N% (deterministic rollout by subject, e.g. 25%)
func (m *Manager) Enabled(name, subject string) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	if strings.HasSuffix(value, "%") {
		pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err != nil || pct <= 0 {
			return false
		}
		if pct >= 100 {
			return true
		}
		if subject == "" {
			return false
		}
		return rolloutBucket(name, subject) < pct
	}

	return false
}

// Raw returns a copy of configured flags.
func (m *Manager) Raw() map[string]string {
	out := make(map[string]string, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out
}

// Names returns the configured flag names in order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.flags))
	for name := range m.flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns evaluated flag status for one subject.
func (m *Manager) Snapshot(subject string) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, subject)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name, subject string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + subject))
	return int(h.Sum32() % 100)
}
