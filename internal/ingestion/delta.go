package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/maraichr/vectorsync/internal/journal"
)

var (
	// `git diff --submodule=short` separates the SHAs with either .. or ...
	submoduleLine = regexp.MustCompile(`^Submodule\s+(\S+)\s+([0-9a-f]{7,})\.{2,3}([0-9a-f]{7,})`)
	allZeros      = regexp.MustCompile(`^0+$`)
)

// submoduleChange is one gitlink pointer move.
type submoduleChange struct {
	Path   string
	OldSHA string
	NewSHA string
}

func parseSubmoduleShort(out string) []submoduleChange {
	var changes []submoduleChange
	for _, line := range strings.Split(out, "\n") {
		m := submoduleLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		changes = append(changes, submoduleChange{Path: m[1], OldSHA: m[2], NewSHA: m[3]})
	}
	return changes
}

// Delta computes file-level changes between two revisions of the superproject,
// expanding submodule pointer moves into changes of the files inside them.
type Delta struct {
	git     Git
	root    string // absolute superproject root
	journal *journal.Journal
	logger  *slog.Logger
}

func NewDelta(git Git, root string, j *journal.Journal, logger *slog.Logger) *Delta {
	return &Delta{git: git, root: root, journal: j, logger: logger}
}

// Between returns the changes from..to. A failing superproject diff is an
// error; a failing submodule expansion is journaled and skipped.
func (d *Delta) Between(ctx context.Context, from, to string) ([]Record, error) {
	out, err := d.git.Run(ctx, "diff", "--name-status", from, to)
	if err != nil {
		return nil, fmt.Errorf("superproject diff: %w", err)
	}
	records := parseNameStatus(out, "")

	subOut, err := d.git.Run(ctx, "diff", "--submodule=short", from, to)
	if err != nil {
		return nil, fmt.Errorf("submodule diff: %w", err)
	}
	for _, sc := range parseSubmoduleShort(subOut) {
		subRecords, err := d.expandSubmodule(ctx, sc)
		if err != nil {
			d.logger.Warn("submodule diff failed",
				slog.String("submodule", sc.Path), slog.String("error", err.Error()))
			d.journal.Append(journal.Entry{FilePath: sc.Path, Operation: "diff-submodule", Message: err.Error()})
			continue
		}
		records = append(records, subRecords...)
	}
	return records, nil
}

func (d *Delta) expandSubmodule(ctx context.Context, sc submoduleChange) ([]Record, error) {
	checkout := filepath.Join(d.root, filepath.FromSlash(sc.Path))
	gitDir := filepath.Join(d.root, ".git", "modules", filepath.FromSlash(sc.Path))
	hasCheckout := isDir(checkout)

	switch {
	case allZeros.MatchString(sc.OldSHA):
		target := []string{"--git-dir", gitDir}
		if hasCheckout {
			target = []string{"-C", checkout}
		}
		out, err := d.git.Run(ctx, append(target, "ls-tree", "-r", "--name-only", sc.NewSHA)...)
		if err != nil {
			return nil, err
		}
		return listRecords(out, sc.Path, OpAdd), nil

	case allZeros.MatchString(sc.NewSHA):
		// The checkout is usually gone once the submodule is removed.
		target := []string{"-C", checkout}
		if isDir(gitDir) {
			target = []string{"--git-dir", gitDir}
		}
		out, err := d.git.Run(ctx, append(target, "ls-tree", "-r", "--name-only", sc.OldSHA)...)
		if err != nil {
			return nil, err
		}
		return listRecords(out, sc.Path, OpDelete), nil

	default:
		target := []string{"--git-dir", gitDir}
		if hasCheckout {
			target = []string{"-C", checkout}
		}
		out, err := d.git.Run(ctx, append(target, "diff", "--name-status", sc.OldSHA, sc.NewSHA)...)
		if err != nil {
			return nil, err
		}
		return parseNameStatus(out, sc.Path), nil
	}
}

func listRecords(out, prefix string, op Op) []Record {
	var records []Record
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, Record{Op: op, Path: joinPath(prefix, strings.TrimRight(line, "\r"))})
	}
	return records
}

// SubmodulePaths reads submodule paths from .gitmodules. A missing file or a
// failing git call yields none.
func (d *Delta) SubmodulePaths(ctx context.Context) []string {
	if _, err := os.Stat(filepath.Join(d.root, ".gitmodules")); err != nil {
		return nil
	}
	out, err := d.git.Run(ctx, "config", "--file", ".gitmodules", "--get-regexp", `submodule\..*\.path`)
	if err != nil {
		return nil
	}
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.SplitN(strings.TrimSpace(line), " ", 2)
		if len(fields) == 2 && strings.TrimSpace(fields[1]) != "" {
			paths = append(paths, strings.ReplaceAll(strings.TrimSpace(fields[1]), "\\", "/"))
		}
	}
	return dedupe(paths)
}

// TrackedFiles lists every tracked file of the superproject and its checked-out
// submodules, as Add records. Submodule gitlinks are excluded; a submodule that
// is missing or fails to list is journaled and skipped.
func (d *Delta) TrackedFiles(ctx context.Context) ([]Record, error) {
	subs := d.SubmodulePaths(ctx)
	isSub := make(map[string]bool, len(subs))
	for _, s := range subs {
		isSub[s] = true
	}

	out, err := d.git.Run(ctx, "ls-files")
	if err != nil {
		return nil, fmt.Errorf("ls-files: %w", err)
	}
	var files []string
	for _, fp := range strings.Split(out, "\n") {
		fp = strings.TrimSpace(fp)
		if fp == "" || isSub[fp] {
			continue
		}
		files = append(files, strings.ReplaceAll(fp, "\\", "/"))
	}

	sorted := append([]string(nil), subs...)
	sort.Strings(sorted)
	for _, sub := range sorted {
		abs := filepath.Join(d.root, filepath.FromSlash(sub))
		if !isDir(abs) {
			d.journal.Append(journal.Entry{FilePath: sub, Operation: "ls-files-submodule", Message: "Submodule path not found on disk"})
			continue
		}
		subOut, err := d.git.Run(ctx, "-C", abs, "ls-files")
		if err != nil {
			d.journal.Append(journal.Entry{FilePath: sub, Operation: "ls-files-submodule", Message: err.Error()})
			continue
		}
		for _, fp := range strings.Split(subOut, "\n") {
			fp = strings.TrimSpace(fp)
			if fp == "" {
				continue
			}
			files = append(files, joinPath(sub, fp))
		}
	}

	files = dedupe(files)
	records := make([]Record, len(files))
	for i, fp := range files {
		records[i] = Record{Op: OpAdd, Path: fp}
	}
	return records, nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
