package ingestion

import (
	"encoding/json"
	"fmt"
	"os"
)

const zeroSHA = "0000000000000000000000000000000000000000"

// GitHubEnv is the GitHub Actions context used to infer a commit range.
type GitHubEnv struct {
	EventPath  string // GITHUB_EVENT_PATH
	EventName  string // GITHUB_EVENT_NAME
	SHA        string // GITHUB_SHA
	Repository string // GITHUB_REPOSITORY
}

type githubEvent struct {
	Before      string `json:"before"`
	After       string `json:"after"`
	PullRequest struct {
		Base struct {
			SHA string `json:"sha"`
		} `json:"base"`
		MergeCommitSHA string `json:"merge_commit_sha"`
	} `json:"pull_request"`
}

// DetectCommitRange derives (base, head) from a push or pull_request event.
// A missing or all-zero base becomes head^.
func DetectCommitRange(env GitHubEnv) (string, string, error) {
	if env.EventPath == "" {
		return "", "", fmt.Errorf("GITHUB_EVENT_PATH not set; provide --from-commit or run in GitHub Actions")
	}
	data, err := os.ReadFile(env.EventPath)
	if err != nil {
		return "", "", fmt.Errorf("read GitHub event file: %w", err)
	}
	var ev githubEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return "", "", fmt.Errorf("parse GitHub event file: %w", err)
	}

	var base, head string
	switch env.EventName {
	case "push":
		base = ev.Before
		head = env.SHA
		if head == "" {
			head = ev.After
		}
	case "pull_request":
		base = ev.PullRequest.Base.SHA
		head = ev.PullRequest.MergeCommitSHA
		if head == "" {
			head = env.SHA
		}
	default:
		return "", "", fmt.Errorf("unsupported GitHub event type %q; only push and pull_request are supported", env.EventName)
	}

	if head == "" {
		if base == "" || base == zeroSHA {
			return "", "", fmt.Errorf("cannot determine base commit: both base and head are missing from event data")
		}
		return "", "", fmt.Errorf("cannot determine head commit: missing from event data")
	}
	return PushRange(base, head), head, nil
}

// PushRange returns the diff base for a push from before to head. A new branch
// reports an all-zero before, which becomes head^.
func PushRange(before, head string) string {
	if before == "" || before == zeroSHA {
		return head + "^"
	}
	return before
}
