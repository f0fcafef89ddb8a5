package query

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeywordGroup ties a set of trigger terms to the hint appended when one of
// them occurs in a question.
type KeywordGroup struct {
	Topic string   `yaml:"topic"`
	Terms []string `yaml:"terms"`
	Hint  string   `yaml:"hint"`
}

// DefaultGroups is evaluated in order; the first match wins.
var DefaultGroups = []KeywordGroup{
	{
		Topic: "education",
		Terms: []string{"academics", "academic", "education", "qualification", "degree", "university", "college", "school"},
		Hint:  "Look for Education, Academics, Qualifications, Degrees, University, College, School sections",
	},
	{
		Topic: "experience",
		Terms: []string{"experience", "work", "employment", "job", "career"},
		Hint:  "Look for Experience, Work History, Employment, Professional Experience sections",
	},
	{
		Topic: "skills",
		Terms: []string{"skill", "ability", "abilities", "expertise", "competenc"},
		Hint:  "Look for Skills, Technical Skills, Competencies, Expertise sections",
	},
	{
		Topic: "contact",
		Terms: []string{"contact", "email", "phone", "address", "linkedin"},
		Hint:  "Look for Contact, Email, Phone, Address, Personal Details sections",
	},
	{
		Topic: "projects",
		Terms: []string{"project", "portfolio", "work done"},
		Hint:  "Look for Projects, Portfolio, Personal Projects, Key Projects sections",
	},
}

var contentRequestPhrases = []string{
	"what is the content",
	"show me the content",
	"display the content",
	"full content",
	"what's in the pdf",
	"what's in the document",
	"what is in the document",
}

type Normalizer struct {
	groups []KeywordGroup
}

// NewNormalizer builds a normalizer from DefaultGroups followed by extra.
func NewNormalizer(extra ...KeywordGroup) *Normalizer {
	groups := make([]KeywordGroup, 0, len(DefaultGroups)+len(extra))
	groups = append(groups, DefaultGroups...)
	for _, g := range extra {
		if g.Hint == "" || len(g.Terms) == 0 {
			continue
		}
		groups = append(groups, g)
	}
	return &Normalizer{groups: groups}
}

// Normalize appends the hint of the first matching group. The input is returned
// unchanged when nothing matches.
func (n *Normalizer) Normalize(q string) string {
	if g, ok := n.Match(q); ok {
		return q + " (" + g.Hint + ")"
	}
	return q
}

// Match reports the first keyword group with a term contained in q.
func (n *Normalizer) Match(q string) (KeywordGroup, bool) {
	lower := strings.ToLower(q)
	for _, g := range n.groups {
		for _, term := range g.Terms {
			if term != "" && strings.Contains(lower, strings.ToLower(term)) {
				return g, true
			}
		}
	}
	return KeywordGroup{}, false
}

// IsContentRequest reports questions asking for the raw document content
// rather than an answer about it.
func IsContentRequest(q string) bool {
	lower := strings.ToLower(strings.TrimSpace(q))
	for _, phrase := range contentRequestPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// LoadGroups reads extra keyword groups from a YAML file of the form
//
//	groups:
//	  - topic: certifications
//	    terms: [certification, certificate]
//	    hint: Look for Certifications sections
func LoadGroups(path string) ([]KeywordGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query hints: %w", err)
	}

	var file struct {
		Groups []KeywordGroup `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse query hints: %w", err)
	}
	return file.Groups, nil
}
