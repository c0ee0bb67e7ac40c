package store

import (
	"testing"
	"time"

	"readlater/pkg/domain"
)

func TestMemoryStoreProfileRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	u := domain.User{ID: "p1", Email: "a@example.com", PasswordHash: "h", CreatedAt: time.Now().UTC()}
	if err := s.SaveProfile(u); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	got, ok, err := s.GetProfileByID("p1")
	if err != nil || !ok {
		t.Fatalf("get by id: ok=%v err=%v", ok, err)
	}
	if got.Email != "a@example.com" {
		t.Fatalf("unexpected email: %q", got.Email)
	}

	got, ok, err = s.GetProfileByEmail("a@example.com")
	if err != nil || !ok {
		t.Fatalf("get by email: ok=%v err=%v", ok, err)
	}
	if got.ID != "p1" {
		t.Fatalf("unexpected id: %q", got.ID)
	}

	exists, err := s.HasProfileEmail("a@example.com")
	if err != nil || !exists {
		t.Fatalf("has email: exists=%v err=%v", exists, err)
	}
	if _, ok, _ := s.GetProfileByEmail("missing@example.com"); ok {
		t.Fatalf("expected missing email to be absent")
	}
}

func TestMemoryStoreContentOwnershipIsolation(t *testing.T) {
	s := NewMemoryStore()
	mustCreate(t, s, domain.Content{ID: "c1", URL: "https://a", ProfileID: "p1"})
	mustCreate(t, s, domain.Content{ID: "c2", URL: "https://b", ProfileID: "p2"})
	mustCreate(t, s, domain.Content{ID: "c3", URL: "https://c", ProfileID: "p1"})

	list, err := s.ListContentByProfile("p1")
	if err != nil {
		t.Fatalf("list content: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 rows for p1, got %d", len(list))
	}
	for _, c := range list {
		if c.ProfileID != "p1" {
			t.Fatalf("row %q leaked from owner %q", c.ID, c.ProfileID)
		}
	}
}

func TestMemoryStoreListEmptyIsNotError(t *testing.T) {
	s := NewMemoryStore()
	list, err := s.ListContentByProfile("nobody")
	if err != nil {
		t.Fatalf("list content: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d rows", len(list))
	}
}

func TestMemoryStoreSetCheckedRequiresOwner(t *testing.T) {
	s := NewMemoryStore()
	mustCreate(t, s, domain.Content{ID: "c1", URL: "https://a", ProfileID: "p1"})

	updated, ok, err := s.SetContentChecked("c1", "p1", true)
	if err != nil || !ok {
		t.Fatalf("set checked: ok=%v err=%v", ok, err)
	}
	if !updated.Checked {
		t.Fatalf("expected checked=true")
	}

	if _, ok, _ := s.SetContentChecked("c1", "p2", false); ok {
		t.Fatalf("non-owner must not toggle the row")
	}
	list, _ := s.ListContentByProfile("p1")
	if !list[0].Checked {
		t.Fatalf("non-owner toggle must not mutate the row")
	}

	if _, ok, _ := s.SetContentChecked("missing", "p1", true); ok {
		t.Fatalf("missing row must report not found")
	}
}

func mustCreate(t *testing.T, s *MemoryStore, c domain.Content) {
	t.Helper()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if err := s.CreateContent(c); err != nil {
		t.Fatalf("create content %q: %v", c.ID, err)
	}
}
