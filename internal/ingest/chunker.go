package ingest

// SplitText splits text into segments of at most size runes, with consecutive
// segments sharing overlap runes at the boundary. Whitespace-only segments
// are dropped; ordering follows the document.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	segments := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		seg := string(runes[start:end])
		if !blank(seg) {
			segments = append(segments, seg)
		}
		if end == len(runes) {
			break
		}
	}
	return segments
}

func blank(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}

// EstimateTokens approximates the token count of a segment. Four characters
// per token tracks the common BPE vocabularies closely enough for display
// and budgeting.
func EstimateTokens(s string) int {
	n := len([]rune(s))
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
