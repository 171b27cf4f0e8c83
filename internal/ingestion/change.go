package ingestion

import (
	"fmt"
	"strings"
)

// Op is the kind of change applied to one path.
type Op string

const (
	OpAdd    Op = "A"
	OpModify Op = "M"
	OpDelete Op = "D"
)

// Record is one file-level change, with a repository-root-relative path in
// forward-slash form.
type Record struct {
	Op   Op     `json:"status"`
	Path string `json:"path"`
}

func (r Record) String() string { return fmt.Sprintf("%s\t%s", r.Op, r.Path) }

// ParseOp accepts exactly A, M or D (case-insensitive).
func ParseOp(s string) (Op, bool) {
	switch Op(strings.ToUpper(strings.TrimSpace(s))) {
	case OpAdd:
		return OpAdd, true
	case OpModify:
		return OpModify, true
	case OpDelete:
		return OpDelete, true
	}
	return "", false
}

// opFromStatus maps a git --name-status code to an Op. Copies, type changes
// and anything else unrecognised are treated as modifications.
func opFromStatus(status string) Op {
	if op, ok := ParseOp(status); ok {
		return op
	}
	return OpModify
}

// isRename reports whether a git status code is a rename (R, R100, ...).
func isRename(status string) bool {
	return strings.HasPrefix(strings.ToUpper(status), "R")
}

// renameRecords expands a rename into a delete of the old path and an add of
// the new one, in that order.
func renameRecords(oldPath, newPath string) []Record {
	return []Record{
		{Op: OpDelete, Path: oldPath},
		{Op: OpAdd, Path: newPath},
	}
}

// parseNameStatus parses `git diff --name-status` output, prefixing every path
// with prefix. Lines with too few columns are ignored.
func parseNameStatus(out, prefix string) []Record {
	var records []Record
	for _, line := range strings.Split(out, "\n") {
		cols := strings.Split(strings.TrimSpace(line), "\t")
		if len(cols) < 2 || cols[0] == "" {
			continue
		}
		status := cols[0]
		switch {
		case isRename(status) && len(cols) >= 3:
			records = append(records, renameRecords(joinPath(prefix, cols[1]), joinPath(prefix, cols[2]))...)
		case isRename(status):
			continue
		default:
			records = append(records, Record{Op: opFromStatus(status), Path: joinPath(prefix, cols[1])})
		}
	}
	return records
}

func joinPath(prefix, p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if prefix == "" {
		return p
	}
	return prefix + "/" + p
}

// dedupe keeps the first occurrence of each string.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
