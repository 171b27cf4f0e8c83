package chunker

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	csvPreviewLines  = 20
	textPreviewChars = 500
	previewMaxBytes  = 1024 * 1024
)

var previewTypes = map[string]bool{
	"txt": true, "log": true, "conf": true, "ini": true, "cfg": true,
}

// summarize builds the metadata-only chunk for a file: type, size and, for
// small plain-text types, a short preview. fullPath is read; displayPath is
// what the text shows.
func summarize(fullPath, displayPath string) string {
	fileType := DetectFileType(fullPath)

	info, err := os.Stat(fullPath)
	if err != nil {
		return fmt.Sprintf("Error accessing %s: %v", displayPath, err)
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)

	var b strings.Builder
	fmt.Fprintf(&b, "%s file: %s\nPath: %s\nSize: %.2f MB\nType: %s\n",
		strings.ToUpper(fileType), filepath.Base(displayPath), displayPath, sizeMB, fileType)

	if info.Size() < previewMaxBytes && previewTypes[fileType] {
		if data, err := os.ReadFile(fullPath); err == nil {
			fmt.Fprintf(&b, "\nPreview:\n%s...", firstRunes(strings.ToValidUTF8(string(data), ""), textPreviewChars))
		}
	}
	return b.String()
}

// tabularPreview returns the first lines of a csv/tsv file.
func tabularPreview(fullPath, displayPath string) string {
	f, err := os.Open(fullPath)
	if err != nil {
		return fmt.Sprintf("Error reading CSV %s: %v", displayPath, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var lines strings.Builder
	for i := 0; i < csvPreviewLines; i++ {
		line, err := r.ReadString('\n')
		lines.WriteString(line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Sprintf("Error reading CSV %s: %v", displayPath, err)
		}
	}

	return fmt.Sprintf("CSV/TSV File: %s\nFirst 20 lines preview:\n%s\n",
		filepath.Base(displayPath), strings.ToValidUTF8(lines.String(), ""))
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
