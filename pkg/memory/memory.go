// Package memory keeps what the service has learned about each user and a
// bounded log of their recent conversation turns.
package memory

import (
	"sort"
	"strings"
	"time"
)

const emptySummary = "No previous information about the user."

type UserMemory struct {
	UserInfo       map[string]string `json:"user_info"`
	Preferences    map[string]string `json:"preferences"`
	Interests      []string          `json:"interests"`
	ImportantFacts []string          `json:"important_facts"`
	LastUpdated    *time.Time        `json:"last_updated"`
}

func New() *UserMemory {
	m := &UserMemory{}
	m.normalize()
	return m
}

// normalize fills missing fields so a partially written record is usable.
func (m *UserMemory) normalize() {
	if m.UserInfo == nil {
		m.UserInfo = map[string]string{}
	}
	if m.Preferences == nil {
		m.Preferences = map[string]string{}
	}
	if m.Interests == nil {
		m.Interests = []string{}
	}
	if m.ImportantFacts == nil {
		m.ImportantFacts = []string{}
	}
}

func (m *UserMemory) IsEmpty() bool {
	return len(m.UserInfo) == 0 && len(m.Preferences) == 0 && len(m.Interests) == 0 && len(m.ImportantFacts) == 0
}

// Merge folds facts into m. Map entries overwrite by key; list entries are
// appended unless already present. It reports whether anything changed.
func (m *UserMemory) Merge(facts *UserMemory) bool {
	if facts == nil {
		return false
	}
	m.normalize()
	changed := mergeMap(m.UserInfo, facts.UserInfo)
	changed = mergeMap(m.Preferences, facts.Preferences) || changed

	var added bool
	m.Interests, added = appendUnique(m.Interests, facts.Interests)
	changed = added || changed
	m.ImportantFacts, added = appendUnique(m.ImportantFacts, facts.ImportantFacts)
	return added || changed
}

func mergeMap(dst, src map[string]string) bool {
	changed := false
	for k, v := range src {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" || dst[k] == v {
			continue
		}
		dst[k] = v
		changed = true
	}
	return changed
}

func appendUnique(dst, src []string) ([]string, bool) {
	changed := false
	for _, s := range src {
		s = strings.TrimSpace(s)
		if s == "" || contains(dst, s) {
			continue
		}
		dst = append(dst, s)
		changed = true
	}
	return dst, changed
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Summary renders the memory for inclusion in a prompt.
func (m *UserMemory) Summary() string {
	if m.IsEmpty() {
		return emptySummary
	}

	var blocks []string
	if len(m.UserInfo) > 0 {
		blocks = append(blocks, "USER INFORMATION:\n"+bulletMap(m.UserInfo))
	}
	if len(m.ImportantFacts) > 0 {
		blocks = append(blocks, "IMPORTANT FACTS ABOUT USER:\n- "+strings.Join(m.ImportantFacts, "\n- "))
	}
	if len(m.Preferences) > 0 {
		blocks = append(blocks, "USER PREFERENCES:\n"+bulletMap(m.Preferences))
	}
	if len(m.Interests) > 0 {
		blocks = append(blocks, "USER INTERESTS: "+strings.Join(m.Interests, ", "))
	}
	return strings.Join(blocks, "\n\n")
}

func bulletMap(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = "- " + k + ": " + values[k]
	}
	return strings.Join(lines, "\n")
}

// Turn is one completed question and answer.
type Turn struct {
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
}

// FormatTurns renders turns oldest first as a plain transcript.
func FormatTurns(turns []Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString("User: ")
		sb.WriteString(t.User)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(t.Assistant)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func lastN(turns []Turn, n int) []Turn {
	if n > 0 && len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}
