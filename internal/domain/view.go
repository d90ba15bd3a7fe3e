package domain

// ViewMode selects which side of the merged history is rendered.
type ViewMode string

const (
	ViewLocal  ViewMode = "local"
	ViewRemote ViewMode = "remote"
)

// ViewItemKind discriminates merged-view entries at ingestion time. Rendering
// never infers the kind from field presence.
type ViewItemKind string

const (
	ViewItemRecord ViewItemKind = "record"
	ViewItemCommit ViewItemKind = "commit"
)

// SlotKind marks the position class of a view item. Pinned slots are
// synthesized projections, not persisted rows, and always render ahead of
// regular entries.
type SlotKind string

const (
	SlotRegular    SlotKind = "regular"
	SlotPinnedTest SlotKind = "pinnedTest"
	SlotPinnedProd SlotKind = "pinnedProd"
)

// ViewItem is one entry of the merged history view. Exactly one of Record or
// Commit is set, matching Kind.
type ViewItem struct {
	Kind   ViewItemKind
	Slot   SlotKind
	Record *Record
	Commit *CommitEvent
}

// Pins holds the at-most-one current-test and current-prod records for a
// collection.
type Pins struct {
	Test *Record
	Prod *Record
}
