package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Git runs git subcommands and returns stdout.
type Git interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ExecGit runs the git binary from Dir, marking Dir and any -C/--git-dir
// target as safe.directory so repositories owned by another user still work.
type ExecGit struct {
	Dir string
}

func NewExecGit(dir string) *ExecGit {
	return &ExecGit{Dir: dir}
}

func (g *ExecGit) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", SafeDirectoryArgs(g.Dir, args)...)
	cmd.Dir = g.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %s: %w", strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// SafeDirectoryArgs prefixes args with `-c safe.directory=<dir>` for cwd and
// for the value following -C or --git-dir. Paths are absolute with forward
// slashes; duplicates are dropped keeping the first.
func SafeDirectoryArgs(cwd string, args []string) []string {
	dirs := []string{normSafeDir(cwd, cwd)}
	for _, flag := range []string{"-C", "--git-dir"} {
		for i, a := range args {
			if a == flag {
				if i+1 < len(args) && strings.TrimSpace(args[i+1]) != "" {
					dirs = append(dirs, normSafeDir(cwd, args[i+1]))
				}
				break
			}
		}
	}

	out := make([]string, 0, len(args)+2*len(dirs))
	for _, d := range dedupe(dirs) {
		out = append(out, "-c", "safe.directory="+d)
	}
	return append(out, args...)
}

func normSafeDir(cwd, p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(cwd, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	return strings.ReplaceAll(p, "\\", "/")
}
