package handler

import (
	"regexp"

	"github.com/maraichr/vectorsync/internal/ingestion"
	"github.com/maraichr/vectorsync/pkg/apierr"
)

// revisionRegex accepts commit ids, branch names and ancestry suffixes. A
// leading dash would be parsed by git as an option.
var revisionRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._/^~@{}-]{0,254}$`)

func validateRevision(field, rev string) *apierr.Error {
	if rev == "" {
		return nil
	}
	if !revisionRegex.MatchString(rev) {
		return apierr.InvalidRevision(field, rev)
	}
	return nil
}

var validModes = map[ingestion.Mode]bool{
	ingestion.ModeCommitRange: true,
	ingestion.ModeFiles:       true,
	ingestion.ModeRetry:       true,
	ingestion.ModeReindexAll:  true,
}

func validateJob(job ingestion.SyncJob) *apierr.Error {
	if !validModes[job.Mode] {
		return apierr.InvalidSyncMode()
	}
	if e := validateRevision("from_commit", job.FromCommit); e != nil {
		return e
	}
	if e := validateRevision("to_commit", job.ToCommit); e != nil {
		return e
	}
	if err := job.Validate(); err != nil {
		return apierr.InvalidSyncJob(err)
	}
	return nil
}
