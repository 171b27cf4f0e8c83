package chunker

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// DetectFileType returns the lowercased extension without the dot. Files with
// no extension or a .sh extension are sniffed for a shebang.
func DetectFileType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))

	if ext == "" || ext == ".sh" {
		if t := shebangType(path); t != "" {
			return t
		}
	}
	return strings.TrimPrefix(ext, ".")
}

func shebangType(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	line, _ := bufio.NewReader(f).ReadString('\n')
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "#!") {
		return ""
	}
	switch {
	case strings.Contains(line, "python"):
		return "python"
	case strings.Contains(line, "bash"), strings.Contains(line, "sh"), strings.Contains(line, "zsh"):
		return "bash"
	}
	return ""
}
