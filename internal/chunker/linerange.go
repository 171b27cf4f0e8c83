package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// LineRange locates chunk inside fullText and returns "L<start>-L<end>". The
// match is heuristic: first by the chunk's first line, then by any file line
// longer than ten characters that the chunk contains. L1-L1 when nothing matches.
func LineRange(chunk, fullText string) string {
	const none = "L1-L1"
	if fullText == "" || chunk == "" {
		return none
	}
	clean := strings.TrimSpace(chunk)
	if clean == "" {
		return none
	}

	fileLines := strings.Split(fullText, "\n")
	chunkLines := strings.Split(clean, "\n")
	first := strings.TrimSpace(chunkLines[0])
	if first == "" {
		return none
	}

	for i, line := range fileLines {
		line = strings.TrimSpace(line)
		if strings.Contains(line, first) || strings.Contains(first, line) {
			return fmt.Sprintf("L%d-L%d", i+1, i+len(chunkLines))
		}
	}

	for i, line := range fileLines {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) > 10 && strings.Contains(chunk, line) {
			return fmt.Sprintf("L%d-L%d", i+1, i+strings.Count(chunk, "\n")+1)
		}
	}
	return none
}
