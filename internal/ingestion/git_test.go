package ingestion

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSafeDirectoryArgs(t *testing.T) {
	root := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	sub := filepath.Join(root, "libs", "a")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	slash := func(p string) string { return strings.ReplaceAll(p, "\\", "/") }

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "cwd only",
			args: []string{"ls-files"},
			want: []string{"-c", "safe.directory=" + slash(root), "ls-files"},
		},
		{
			name: "relative -C target",
			args: []string{"-C", "libs/a", "ls-files"},
			want: []string{"-c", "safe.directory=" + slash(root), "-c", "safe.directory=" + slash(sub), "-C", "libs/a", "ls-files"},
		},
		{
			name: "git-dir equal to cwd is deduped",
			args: []string{"--git-dir", root, "log"},
			want: []string{"-c", "safe.directory=" + slash(root), "--git-dir", root, "log"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SafeDirectoryArgs(root, tt.args)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v\nwant %v", got, tt.want)
			}
		})
	}
}

func TestDetectCommitRange(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	push := write("push.json", `{"before":"b0","after":"a0"}`)
	pushNew := write("push-new.json", `{"before":"0000000000000000000000000000000000000000","after":"a0"}`)
	pr := write("pr.json", `{"pull_request":{"base":{"sha":"base1"},"merge_commit_sha":"merge1"}}`)
	prNoMerge := write("pr-nomerge.json", `{"pull_request":{"base":{"sha":"base1"}}}`)

	tests := []struct {
		name       string
		env        GitHubEnv
		base, head string
		wantErr    bool
	}{
		{"push uses GITHUB_SHA", GitHubEnv{EventPath: push, EventName: "push", SHA: "sha1"}, "b0", "sha1", false},
		{"push falls back to after", GitHubEnv{EventPath: push, EventName: "push"}, "b0", "a0", false},
		{"push zero base", GitHubEnv{EventPath: pushNew, EventName: "push", SHA: "sha1"}, "sha1^", "sha1", false},
		{"pull request", GitHubEnv{EventPath: pr, EventName: "pull_request", SHA: "sha1"}, "base1", "merge1", false},
		{"pull request without merge commit", GitHubEnv{EventPath: prNoMerge, EventName: "pull_request", SHA: "sha1"}, "base1", "sha1", false},
		{"unsupported event", GitHubEnv{EventPath: push, EventName: "workflow_dispatch"}, "", "", true},
		{"no event path", GitHubEnv{EventName: "push"}, "", "", true},
		{"missing event file", GitHubEnv{EventPath: filepath.Join(dir, "none.json"), EventName: "push"}, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, head, err := DetectCommitRange(tt.env)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if base != tt.base || head != tt.head {
				t.Errorf("got %s..%s, want %s..%s", base, head, tt.base, tt.head)
			}
		})
	}
}

func TestRepoNameAndCommit(t *testing.T) {
	root := filepath.Join(t.TempDir(), "docs-site")
	if got := RepoName("acme/platform", root); got != "platform" {
		t.Errorf("RepoName from GITHUB_REPOSITORY = %q", got)
	}
	if got := RepoName("", root); got != "docs-site" {
		t.Errorf("RepoName from root = %q", got)
	}
	if got := CommitSHA(""); got != "unknown" {
		t.Errorf("CommitSHA empty = %q", got)
	}
	if got := ShortSHA("0123456789abcdef"); got != "01234567" {
		t.Errorf("ShortSHA = %q", got)
	}
}
