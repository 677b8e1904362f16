package testsupport

import (
	"context"
	"testing"
	"time"

	"distill/internal/config"
	"distill/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedVideo saves a minimal extracted record for tests.
func SeedVideo(t testing.TB, st *store.Store, id, title string, tags ...string) *store.Video {
	t.Helper()

	video := &store.Video{
		ID:          id,
		Title:       title,
		ChannelName: "Test Channel",
		Tags:        tags,
		ExtractedAt: time.Now().UTC(),
	}
	if err := st.SaveVideo(context.Background(), video); err != nil {
		t.Fatalf("store.SaveVideo: %v", err)
	}
	return video
}
