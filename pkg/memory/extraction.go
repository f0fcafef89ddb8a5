package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"docchat-be/pkg/llm"
)

const maxFactLength = 80

var (
	namePattern     = regexp.MustCompile(`(?i)\b(?:my name is|call me|i'm called|i am called)\s+(\p{L}[\p{L}'-]*)`)
	locationPattern = regexp.MustCompile(`(?i)\b(?:i live in|i'm from|i am from|i'm based in|i am based in|based in|located in)\s+([^.,!?;\n]+)`)
	interestPattern = regexp.MustCompile(`(?i)\bi (?:really )?(?:like|love|enjoy)\s+([^.,!?;\n]+)`)
	interestedIn    = regexp.MustCompile(`(?i)\binterested in\s+([^.,!?;\n]+)`)
	favoritePattern = regexp.MustCompile(`(?i)\bmy favou?rite\s+([\p{L} ]+?)\s+is\s+([^.,!?;\n]+)`)
)

// ExtractRules pulls facts out of a user message using fixed trigger phrases.
// It returns nil when nothing matched.
func ExtractRules(message string) *UserMemory {
	facts := New()

	if m := namePattern.FindStringSubmatch(message); m != nil && len([]rune(m[1])) > 1 {
		facts.UserInfo["name"] = m[1]
	}
	if m := locationPattern.FindStringSubmatch(message); m != nil {
		if loc := clip(m[1]); loc != "" {
			facts.UserInfo["location"] = loc
		}
	}
	for _, p := range []*regexp.Regexp{interestPattern, interestedIn} {
		for _, m := range p.FindAllStringSubmatch(message, -1) {
			if interest := strings.ToLower(clip(m[1])); interest != "" {
				facts.Interests = append(facts.Interests, interest)
			}
		}
	}
	if m := favoritePattern.FindStringSubmatch(message); m != nil {
		key := "favorite " + strings.ToLower(strings.TrimSpace(m[1]))
		if v := clip(m[2]); v != "" {
			facts.Preferences[key] = v
		}
	}

	if facts.IsEmpty() {
		return nil
	}
	return facts
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxFactLength {
		s = strings.TrimSpace(string(r[:maxFactLength]))
	}
	return s
}

// Generator is the slice of the LLM gateway the model extractor needs.
type Generator interface {
	Generate(ctx context.Context, prompt string, s llm.Sampling) (string, error)
}

// ModelExtractor asks the model for a small JSON fact set about the user.
type ModelExtractor struct {
	gen Generator
}

func NewModelExtractor(gen Generator) *ModelExtractor {
	return &ModelExtractor{gen: gen}
}

var extractionSampling = llm.Sampling{Temperature: 0, TopP: 0.9, TopK: 20, MaxTokens: 512}

const extractionPrompt = `Extract durable facts the user states about themselves in the exchange below.
Reply with a single JSON object and nothing else, using exactly these keys:
{"user_info": {}, "preferences": {}, "interests": [], "important_facts": []}
Leave a field empty when nothing applies. Do not include facts about the documents.

User: %s
Assistant: %s`

func (e *ModelExtractor) Extract(ctx context.Context, question, answer string) (*UserMemory, error) {
	out, err := e.gen.Generate(ctx, fmt.Sprintf(extractionPrompt, question, answer), extractionSampling)
	if err != nil {
		return nil, fmt.Errorf("model extraction: %w", err)
	}
	return ParseFacts(out)
}

// ParseFacts reads the first JSON object in a model reply, ignoring code fences
// and surrounding prose.
func ParseFacts(reply string) (*UserMemory, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model reply")
	}

	facts := &UserMemory{}
	if err := json.Unmarshal([]byte(reply[start:end+1]), facts); err != nil {
		return nil, fmt.Errorf("decode model facts: %w", err)
	}
	facts.normalize()
	facts.LastUpdated = nil
	return facts, nil
}
