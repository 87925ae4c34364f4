package main

import (
	"context"

	"github.com/k-r-g/gemini"
)

// demoStore is a bare-minimum EntityStore that reports itself as
// initialized but knows no groups or relations, so the Applier logs every
// incoming event as one for an unknown group or relation and drops it.
// It exists so this command runs standalone without
// a real application wired in; it is not a usable EntityStore.
type demoStore struct{}

func (s *demoStore) IsInitialized() bool { return true }

func (s *demoStore) GroupByNumber(groupNumber int) (gemini.EntityGroup, bool) {
	return nil, false
}

func (s *demoStore) Reset(ctx context.Context, loadEverything, distribute bool) error {
	return nil
}

func (s *demoStore) ResetGroup(ctx context.Context, group gemini.EntityGroup, loadEverything, distribute bool) error {
	return nil
}

func (s *demoStore) CachedRelation(relationID int64) (gemini.CachedRelation, bool) {
	return nil, false
}

func (s *demoStore) NotifyObjectExpired(ctx context.Context, group gemini.EntityGroup, objectID int64, distribute bool) {
}
