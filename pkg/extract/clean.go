package extract

import "strings"

// Clean normalizes extracted text: whitespace runs inside a line become one
// space, consecutive blank lines collapse to one, and leading or trailing blank
// lines are dropped. Clean is idempotent.
func Clean(text string) string {
	text = strings.ToValidUTF8(text, "�")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false

	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if len(out) > 0 {
				blank = true
			}
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}

	return strings.Join(out, "\n")
}
