package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grimoiredev/grimoire/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   domain.FailureKind
	}{
		{"unauthorized", 401, "", domain.FailureAuthRequired},
		{"forbidden", 403, `{"message":"token lacks scope"}`, domain.FailureForbidden},
		{"not implemented", 501, "", domain.FailureUnsupportedPlatform},
		{"empty repository", 400, `{"message":"409 Git Repository is empty."}`, domain.FailureRepoEmpty},
		{"plain validation", 400, `{"message":"invalid branch name"}`, domain.FailureValidation},
		{"server error", 500, "boom", domain.FailureUnknown},
		{"not found", 404, "", domain.FailureUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.status, []byte(tc.body)))
		})
	}
}

func TestClassifyOrderPrefersStatusOverBody(t *testing.T) {
	// A 401 whose body happens to mention an empty repository is still an
	// auth failure.
	got := Classify(401, []byte("git repository is empty"))
	assert.Equal(t, domain.FailureAuthRequired, got)
}
