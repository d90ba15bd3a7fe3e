package remote

import (
	"net/http"
	"strings"

	"github.com/grimoiredev/grimoire/internal/domain"
)

// emptyRepoMarkers are the body fragments a 400 response carries when the
// target repository has no commits yet.
var emptyRepoMarkers = []string{
	"empty repository",
	"git repository is empty",
	"409 git repository is empty",
}

// Classify maps a transport failure into the promotion failure taxonomy.
// Rules apply in order; it is a pure function informing the caller's recovery
// policy.
func Classify(status int, body []byte) domain.FailureKind {
	switch status {
	case http.StatusUnauthorized:
		return domain.FailureAuthRequired
	case http.StatusForbidden:
		return domain.FailureForbidden
	case http.StatusNotImplemented:
		return domain.FailureUnsupportedPlatform
	case http.StatusBadRequest:
		lower := strings.ToLower(string(body))
		for _, marker := range emptyRepoMarkers {
			if strings.Contains(lower, marker) {
				return domain.FailureRepoEmpty
			}
		}
		return domain.FailureValidation
	default:
		return domain.FailureUnknown
	}
}
