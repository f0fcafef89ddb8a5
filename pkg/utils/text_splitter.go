package utils

import "unicode"

// SplitText splits text into chunks of at most chunkSize runes, each starting
// overlap runes before the end of the previous one. A chunk boundary is moved
// back to the last whitespace in the final fifth of the window when one exists,
// so words are not cut in half.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(text)
	totalLen := len(runes)
	if totalLen == 0 {
		return nil
	}
	if chunkSize <= 0 || totalLen <= chunkSize {
		return []string{text}
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var chunks []string
	for start := 0; start < totalLen; {
		end := start + chunkSize
		if end >= totalLen {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		end = softBoundary(runes, start, end, chunkSize)
		chunks = append(chunks, string(runes[start:end]))

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

func softBoundary(runes []rune, start, end, chunkSize int) int {
	limit := end - chunkSize/5
	if limit <= start {
		return end
	}
	for i := end; i > limit; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
