package domain

import "fmt"

// FailureKind is the taxonomy a remote failure is classified into. It drives
// the caller's recovery policy; classification itself has no side effects.
type FailureKind string

const (
	FailureNone                FailureKind = ""
	FailureAuthRequired        FailureKind = "auth_required"
	FailureForbidden           FailureKind = "forbidden"
	FailureUnsupportedPlatform FailureKind = "unsupported_platform"
	FailureRepoEmpty           FailureKind = "repo_empty"
	FailureValidation          FailureKind = "validation"
	FailureNetwork             FailureKind = "network"
	FailureParse               FailureKind = "parse"
	FailureUnknown             FailureKind = "unknown"
)

// NeedsReauth reports whether the failure should prompt re-authentication.
func (k FailureKind) NeedsReauth() bool {
	return k == FailureAuthRequired || k == FailureForbidden
}

// RemoteError is a classified transport failure from the git platform API.
type RemoteError struct {
	Kind    FailureKind
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("remote: %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("remote: %s: %s", e.Kind, e.Message)
}
