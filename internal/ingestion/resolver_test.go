package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/maraichr/vectorsync/internal/journal"
)

// scriptedGit answers git calls from a table keyed by the space-joined args.
type scriptedGit struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newScriptedGit() *scriptedGit {
	return &scriptedGit{outputs: map[string]string{}, errs: map[string]error{}}
}

func (g *scriptedGit) on(out string, args ...string) *scriptedGit {
	g.outputs[strings.Join(args, " ")] = out
	return g
}

func (g *scriptedGit) fail(err error, args ...string) *scriptedGit {
	g.errs[strings.Join(args, " ")] = err
	return g
}

func (g *scriptedGit) Run(_ context.Context, args ...string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := strings.Join(args, " ")
	g.calls = append(g.calls, key)
	if err, ok := g.errs[key]; ok {
		return "", err
	}
	if out, ok := g.outputs[key]; ok {
		return out, nil
	}
	return "", fmt.Errorf("unexpected git call: %s", key)
}

func (g *scriptedGit) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(t *testing.T, git Git, root string, env GitHubEnv) (*Resolver, *journal.Journal) {
	t.Helper()
	j := journal.New(filepath.Join(t.TempDir(), "errors.jsonl"), discardLogger())
	return NewResolver(git, root, j, env, discardLogger()), j
}

func readJournal(t *testing.T, j *journal.Journal) []journal.Entry {
	t.Helper()
	if !journal.Exists(j.Path()) {
		return nil
	}
	entries, err := journal.ReadFile(j.Path())
	if err != nil {
		t.Fatal(err)
	}
	return entries
}

func assertFatal(t *testing.T, err error, kind FatalKind) {
	t.Helper()
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FatalError, got %v", err)
	}
	if fe.Kind != kind {
		t.Fatalf("expected %s fatal, got %s", kind, fe.Kind)
	}
}

func TestResolve_RenameBecomesDeleteThenAdd(t *testing.T) {
	git := newScriptedGit().
		on("R100\told.md\tnew.md\n", "diff", "--name-status", "a1", "b2").
		on("", "diff", "--submodule=short", "a1", "b2")
	r, _ := newTestResolver(t, git, t.TempDir(), GitHubEnv{})

	cs, err := r.Resolve(context.Background(), Request{FromCommit: "a1", ToCommit: "b2"})
	if err != nil {
		t.Fatal(err)
	}
	want := []Record{{Op: OpDelete, Path: "old.md"}, {Op: OpAdd, Path: "new.md"}}
	if !reflect.DeepEqual(cs.Records, want) {
		t.Errorf("got %v, want %v", cs.Records, want)
	}
	if cs.Mode != ModeCommitRange || cs.FromCommit != "a1" || cs.ToCommit != "b2" {
		t.Errorf("unexpected change set header: %+v", cs)
	}
}

func TestResolve_CommitRangeStatuses(t *testing.T) {
	git := newScriptedGit().
		on("A\tadded.go\nM\tchanged.go\nD\tgone.go\nC75\tsrc.go\tcopy.go\nT\tlink\n", "diff", "--name-status", "HEAD~1", "HEAD").
		on("", "diff", "--submodule=short", "HEAD~1", "HEAD")
	r, _ := newTestResolver(t, git, t.TempDir(), GitHubEnv{})

	cs, err := r.Resolve(context.Background(), Request{FromCommit: "HEAD~1"})
	if err != nil {
		t.Fatal(err)
	}
	want := []Record{
		{Op: OpAdd, Path: "added.go"},
		{Op: OpModify, Path: "changed.go"},
		{Op: OpDelete, Path: "gone.go"},
		{Op: OpModify, Path: "src.go"},
		{Op: OpModify, Path: "link"},
	}
	if !reflect.DeepEqual(cs.Records, want) {
		t.Errorf("got %v, want %v", cs.Records, want)
	}
}

func TestResolve_SubmodulePointerMoves(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "libs", "core"), 0o755); err != nil {
		t.Fatal(err)
	}
	core := filepath.Join(root, "libs", "core")

	subDiff := strings.Join([]string{
		"Submodule libs/core 1111111..2222222:",
		"Submodule libs/new 0000000...3333333 (new submodule)",
		"Submodule libs/old 4444444..0000000 (submodule deleted)",
	}, "\n")

	// libs/new has no checkout so it is read through its git dir; libs/old
	// has neither, so the checkout form is tried.
	git := newScriptedGit().
		on("M\tlibs/core\n", "diff", "--name-status", "a", "b").
		on(subDiff, "diff", "--submodule=short", "a", "b").
		on("M\tsrc/x.go\nR090\tdoc/a.md\tdoc/b.md\n", "-C", core, "diff", "--name-status", "1111111", "2222222").
		on("README.md\n", "--git-dir", filepath.Join(root, ".git", "modules", "libs", "new"), "ls-tree", "-r", "--name-only", "3333333").
		on("main.c\n", "-C", filepath.Join(root, "libs", "old"), "ls-tree", "-r", "--name-only", "4444444")

	r, _ := newTestResolver(t, git, root, GitHubEnv{})
	cs, err := r.Resolve(context.Background(), Request{FromCommit: "a", ToCommit: "b"})
	if err != nil {
		t.Fatal(err)
	}
	want := []Record{
		{Op: OpModify, Path: "libs/core"},
		{Op: OpModify, Path: "libs/core/src/x.go"},
		{Op: OpDelete, Path: "libs/core/doc/a.md"},
		{Op: OpAdd, Path: "libs/core/doc/b.md"},
		{Op: OpAdd, Path: "libs/new/README.md"},
		{Op: OpDelete, Path: "libs/old/main.c"},
	}
	if !reflect.DeepEqual(cs.Records, want) {
		t.Errorf("got %v\nwant %v", cs.Records, want)
	}
}

func TestResolve_SubmoduleFailureIsJournaled(t *testing.T) {
	root := t.TempDir()
	git := newScriptedGit().
		on("M\tREADME.md\n", "diff", "--name-status", "a", "b").
		on("Submodule vendor/x 1111111..2222222:\n", "diff", "--submodule=short", "a", "b").
		fail(errors.New("bad object"), "--git-dir", filepath.Join(root, ".git", "modules", "vendor", "x"), "diff", "--name-status", "1111111", "2222222")
	r, j := newTestResolver(t, git, root, GitHubEnv{})

	cs, err := r.Resolve(context.Background(), Request{FromCommit: "a", ToCommit: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(cs.Records) != 1 || cs.Records[0].Path != "README.md" {
		t.Errorf("unexpected records: %v", cs.Records)
	}
	entries := readJournal(t, j)
	if len(entries) != 1 || entries[0].Operation != "diff-submodule" || entries[0].FilePath != "vendor/x" {
		t.Errorf("unexpected journal: %+v", entries)
	}
}

func TestResolve_UnreadableRangeIsFatal(t *testing.T) {
	git := newScriptedGit().fail(errors.New("unknown revision"), "diff", "--name-status", "nope", "HEAD")
	r, _ := newTestResolver(t, git, t.TempDir(), GitHubEnv{})

	_, err := r.Resolve(context.Background(), Request{FromCommit: "nope"})
	assertFatal(t, err, FatalResolver)
}

func TestResolve_ReindexAllConflictsBeforeSideEffects(t *testing.T) {
	listing := filepath.Join(t.TempDir(), "changed.txt")
	if err := os.WriteFile(listing, []byte("M\ta.md\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  Request
	}{
		{"files", Request{ReindexAll: true, Files: []string{"a.md"}}},
		{"retry", Request{ReindexAll: true, RetryErrors: "errors.jsonl"}},
		{"listing", Request{ReindexAll: true, ListingFile: listing}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			git := newScriptedGit()
			r, j := newTestResolver(t, git, t.TempDir(), GitHubEnv{})

			_, err := r.Resolve(context.Background(), tt.req)
			assertFatal(t, err, FatalResolver)
			if !errors.Is(err, ErrConflictingModes) {
				t.Errorf("expected ErrConflictingModes, got %v", err)
			}
			if git.callCount() != 0 {
				t.Errorf("git must not be called, got %d calls", git.callCount())
			}
			if journal.Exists(j.Path()) {
				t.Error("journal must not be touched")
			}
		})
	}
}

func TestResolve_ReindexAll(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".gitmodules"), []byte("[submodule]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "libs", "a"), 0o755); err != nil {
		t.Fatal(err)
	}
	git := newScriptedGit().
		on("submodule.libs/a.path libs/a\nsubmodule.libs/missing.path libs/missing\n",
			"config", "--file", ".gitmodules", "--get-regexp", `submodule\..*\.path`).
		on(".gitmodules\nREADME.md\nlibs/a\nlibs/missing\n", "ls-files").
		on("x.go\nREADME.md\n", "-C", filepath.Join(root, "libs", "a"), "ls-files")
	r, j := newTestResolver(t, git, root, GitHubEnv{})

	cs, err := r.Resolve(context.Background(), Request{ReindexAll: true})
	if err != nil {
		t.Fatal(err)
	}
	want := []Record{
		{Op: OpAdd, Path: ".gitmodules"},
		{Op: OpAdd, Path: "README.md"},
		{Op: OpAdd, Path: "libs/a/x.go"},
		{Op: OpAdd, Path: "libs/a/README.md"},
	}
	if !reflect.DeepEqual(cs.Records, want) {
		t.Errorf("got %v\nwant %v", cs.Records, want)
	}
	entries := readJournal(t, j)
	if len(entries) != 1 || entries[0].Operation != "ls-files-submodule" || entries[0].FilePath != "libs/missing" {
		t.Errorf("unexpected journal: %+v", entries)
	}
}

func TestResolve_ReindexAllEmptyIsFatal(t *testing.T) {
	git := newScriptedGit().on("", "ls-files")
	r, _ := newTestResolver(t, git, t.TempDir(), GitHubEnv{})

	_, err := r.Resolve(context.Background(), Request{ReindexAll: true})
	assertFatal(t, err, FatalResolver)
	if !errors.Is(err, ErrEmptyReindex) {
		t.Errorf("expected ErrEmptyReindex, got %v", err)
	}
}

func TestParseFileTokens(t *testing.T) {
	records, err := ParseFileTokens([]string{"docs/a.md", "A:new.md", "d:old.md", "M:dir/x:y.txt"})
	if err != nil {
		t.Fatal(err)
	}
	want := []Record{
		{Op: OpModify, Path: "docs/a.md"},
		{Op: OpAdd, Path: "new.md"},
		{Op: OpDelete, Path: "old.md"},
		{Op: OpModify, Path: "dir/x:y.txt"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("got %v, want %v", records, want)
	}

	if _, err := ParseFileTokens([]string{"X:a.md"}); err == nil {
		t.Error("expected error for invalid status prefix")
	}
}

func TestResolve_InvalidFilesPrefixIsFatal(t *testing.T) {
	r, _ := newTestResolver(t, newScriptedGit(), t.TempDir(), GitHubEnv{})
	_, err := r.Resolve(context.Background(), Request{Files: []string{"Q:a.md"}})
	assertFatal(t, err, FatalResolver)
}

func TestResolve_RetryReplaysJournal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "errors.jsonl")
	content := `{"file_path":"a.md","operation":"process","message":"boom","status":"A"}
not json
{"file_path":"b.md","operation":"upsert","message":"boom"}
{"file_path":"c.md","operation":"process","message":"boom","status":"D"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	r, _ := newTestResolver(t, newScriptedGit(), dir, GitHubEnv{})

	cs, err := r.Resolve(context.Background(), Request{RetryErrors: path})
	if err != nil {
		t.Fatal(err)
	}
	want := []Record{
		{Op: OpAdd, Path: "a.md"},
		{Op: OpModify, Path: "b.md"},
		{Op: OpDelete, Path: "c.md"},
	}
	if !reflect.DeepEqual(cs.Records, want) {
		t.Errorf("got %v, want %v", cs.Records, want)
	}

	_, err = r.Resolve(context.Background(), Request{RetryErrors: filepath.Join(dir, "missing.jsonl")})
	assertFatal(t, err, FatalResolver)
}

func TestParseListingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changed.txt")
	content := "A\tdocs/with space.md\n\nM   src/main.go\nR100 a.txt b.txt\nC\tx.txt\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	records, err := ParseListingFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []Record{
		{Op: OpAdd, Path: "docs/with space.md"},
		{Op: OpModify, Path: "src/main.go"},
		{Op: OpDelete, Path: "a.txt"},
		{Op: OpAdd, Path: "b.txt"},
		{Op: OpModify, Path: "x.txt"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("got %v\nwant %v", records, want)
	}
}

func TestParseListingFile_MalformedRename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changed.txt")
	if err := os.WriteFile(path, []byte("R100\tonly-old.md\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseListingFile(path); err == nil {
		t.Fatal("expected error for rename with missing new path")
	}
}

func TestResolve_NoModeIsFatal(t *testing.T) {
	r, _ := newTestResolver(t, newScriptedGit(), t.TempDir(), GitHubEnv{})
	_, err := r.Resolve(context.Background(), Request{ListingFile: ""})
	assertFatal(t, err, FatalResolver)
}

func TestResolve_ListingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changed.txt")
	if err := os.WriteFile(path, []byte("D\told.md\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	git := newScriptedGit()
	r, _ := newTestResolver(t, git, t.TempDir(), GitHubEnv{})

	cs, err := r.Resolve(context.Background(), Request{ListingFile: path})
	if err != nil {
		t.Fatal(err)
	}
	if cs.Mode != ModeListing || len(cs.Records) != 1 || cs.Records[0].Op != OpDelete {
		t.Errorf("unexpected change set: %+v", cs)
	}
	if git.callCount() != 0 {
		t.Errorf("listing mode must not call git, got %d calls", git.callCount())
	}
}

func TestResolve_GitHubPushAutodetect(t *testing.T) {
	event := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(event, []byte(`{"before":"0000000000000000000000000000000000000000","after":"abc"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	git := newScriptedGit().
		on("M\ta.md\n", "diff", "--name-status", "head1^", "head1").
		on("", "diff", "--submodule=short", "head1^", "head1")
	r, _ := newTestResolver(t, git, t.TempDir(), GitHubEnv{EventPath: event, EventName: "push", SHA: "head1"})

	cs, err := r.Resolve(context.Background(), Request{})
	if err != nil {
		t.Fatal(err)
	}
	if cs.FromCommit != "head1^" || cs.ToCommit != "head1" {
		t.Errorf("unexpected range %s..%s", cs.FromCommit, cs.ToCommit)
	}
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"files only", Request{Files: []string{"A:a.md", "b.md"}}, nil},
		{"reindex only", Request{ReindexAll: true}, nil},
		{"listing only", Request{ListingFile: "changes.txt"}, nil},
		{"reindex with files", Request{ReindexAll: true, Files: []string{"a.md"}}, ErrConflictingModes},
		{"reindex with retry", Request{ReindexAll: true, RetryErrors: "errors.jsonl"}, ErrConflictingModes},
		{"reindex with listing", Request{ReindexAll: true, ListingFile: "changes.txt"}, ErrConflictingModes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			assertFatal(t, err, FatalResolver)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	err := Request{Files: []string{"Q:a.md"}}.Validate()
	assertFatal(t, err, FatalResolver)
}
