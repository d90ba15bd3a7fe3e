// Package history merges the local record history with the remote commit log
// into one ordered view.
package history

import (
	"sort"

	"github.com/grimoiredev/grimoire/internal/domain"
)

// DerivePins finds the at-most-one current-test and current-prod records.
// Records are expected newest first; the newest holder of each tier wins,
// with a merged prod promotion preferred over a pending one.
func DerivePins(records []domain.Record) domain.Pins {
	var pins domain.Pins
	var pendingProd *domain.Record
	for i := range records {
		rec := &records[i]
		switch {
		case rec.Promotion == domain.PromotionTest && pins.Test == nil:
			pins.Test = rec
		case rec.Promotion == domain.PromotionProdMerged && pins.Prod == nil:
			pins.Prod = rec
		case rec.Promotion == domain.PromotionProdPending && pendingProd == nil:
			pendingProd = rec
		}
	}
	if pins.Prod == nil {
		pins.Prod = pendingProd
	}
	return pins
}

// Merge builds the ordered view for mode. It is deterministic: identical
// inputs yield identical output.
//
// Local mode renders the pinned test slot first, the pinned prod slot second,
// then the remaining records newest first; pinned records never reappear in
// the remainder. Remote mode renders commits newest first and drops anything
// that is not a well-formed commit, guarding the shared rendering path
// against cross-contamination.
func Merge(local []domain.Record, commits []domain.CommitEvent, pins domain.Pins, mode domain.ViewMode) []domain.ViewItem {
	if mode == domain.ViewRemote {
		return mergeRemote(commits)
	}
	return mergeLocal(local, pins)
}

func mergeLocal(local []domain.Record, pins domain.Pins) []domain.ViewItem {
	items := make([]domain.ViewItem, 0, len(local)+2)
	pinnedIDs := make(map[int64]bool, 2)
	if pins.Test != nil {
		items = append(items, domain.ViewItem{Kind: domain.ViewItemRecord, Slot: domain.SlotPinnedTest, Record: pins.Test})
		if pins.Test.ID != 0 {
			pinnedIDs[pins.Test.ID] = true
		}
	}
	if pins.Prod != nil {
		items = append(items, domain.ViewItem{Kind: domain.ViewItemRecord, Slot: domain.SlotPinnedProd, Record: pins.Prod})
		if pins.Prod.ID != 0 {
			pinnedIDs[pins.Prod.ID] = true
		}
	}

	rest := make([]domain.Record, 0, len(local))
	for _, rec := range local {
		if pinnedIDs[rec.ID] {
			continue
		}
		rest = append(rest, rec)
	}
	sort.SliceStable(rest, func(i, j int) bool {
		if !rest[i].CreatedAt.Equal(rest[j].CreatedAt) {
			return rest[i].CreatedAt.After(rest[j].CreatedAt)
		}
		return rest[i].ID > rest[j].ID
	})
	for i := range rest {
		items = append(items, domain.ViewItem{Kind: domain.ViewItemRecord, Slot: domain.SlotRegular, Record: &rest[i]})
	}
	return items
}

func mergeRemote(commits []domain.CommitEvent) []domain.ViewItem {
	clean := make([]domain.CommitEvent, 0, len(commits))
	for _, c := range commits {
		if c.SHA == "" {
			continue
		}
		clean = append(clean, c)
	}
	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].Timestamp.After(clean[j].Timestamp)
	})

	items := make([]domain.ViewItem, 0, len(clean))
	for i := range clean {
		items = append(items, domain.ViewItem{Kind: domain.ViewItemCommit, Slot: domain.SlotRegular, Commit: &clean[i]})
	}
	return items
}
