package fileinfo

import (
	"errors"
	"fmt"
)

// FileInfo describes a resolved file location on a code host.
type FileInfo struct {
	RawRepoName string `json:"raw_repo_name"`
	FilePath    string `json:"file_path"`
	CommitID    string `json:"commit_id"`
	Revision    string `json:"revision"`

	BaseRawRepoName string `json:"base_raw_repo_name,omitempty"`
	BaseFilePath    string `json:"base_file_path,omitempty"`
	BaseCommitID    string `json:"base_commit_id,omitempty"`
	BaseRevision    string `json:"base_revision,omitempty"`
}

// PageType is the kind of code-host page a URL points at.
type PageType string

const (
	PageBlob    PageType = "blob"
	PageTree    PageType = "tree"
	PagePull    PageType = "pull"
	PageCommit  PageType = "commit"
	PageCompare PageType = "compare"
	PageOther   PageType = "other"
)

// ParsedURL is the repository-relevant part of a code-host URL.
type ParsedURL struct {
	PageType    PageType `json:"page_type"`
	RawRepoName string   `json:"raw_repo_name"`

	// RevisionAndFilePath is set for blob and tree pages, URL-decoded.
	RevisionAndFilePath string `json:"revision_and_file_path,omitempty"`
	PullRequest         string `json:"pull_request,omitempty"`
	CommitID            string `json:"commit_id,omitempty"`
	CompareSpec         string `json:"compare_spec,omitempty"`
}

// Kind classifies a resolution failure.
type Kind string

const (
	KindUnsupportedPage         Kind = "UNSUPPORTED_PAGE"
	KindMissingPath             Kind = "MISSING_PATH"
	KindInconsistentPath        Kind = "INCONSISTENT_PATH"
	KindInconsistentSnippetPath Kind = "INCONSISTENT_SNIPPET_PATH"
	KindMissingRevision         Kind = "MISSING_REVISION"
	KindMissingCommitLink       Kind = "MISSING_COMMIT_LINK"
	KindUnparsableCommitID      Kind = "UNPARSABLE_COMMIT_ID"
	KindNotABlobPermalink       Kind = "NOT_A_BLOB_PERMALINK"
	KindMissingPermalink        Kind = "MISSING_PERMALINK"
	KindInvalidURL              Kind = "INVALID_URL"
)

// Error is returned by every resolver. Failures are never retried; they
// signal host markup the resolver does not understand.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind carried by err, or "" when err is not a resolver error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err is a resolver error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
