package domain

// PromotionResult reports the outcome of a promotion operation. Remote writes
// carry the commit or pull request reference they produced for user-facing
// linking.
type PromotionResult struct {
	Record         Record
	State          PromotionState
	Commit         *CommitRef
	PR             *PullRequest
	RemoteWrite    bool
	Reauthenticate bool
}

// SyncResult summarizes one merge-status sync pass.
type SyncResult struct {
	Checked int
	Merged  int
}
