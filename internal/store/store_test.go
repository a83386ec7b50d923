package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBanAddIsBannedRemove(t *testing.T) {
	s := openTestStore(t)

	rec, err := s.AddBan("1.2.3.4", "cheating", time.Hour)
	if err != nil {
		t.Fatalf("AddBan: %v", err)
	}

	banned, err := s.IsBanned("1.2.3.4")
	if err != nil {
		t.Fatalf("IsBanned: %v", err)
	}
	if !banned {
		t.Fatal("expected 1.2.3.4 to be banned")
	}

	if banned, _ := s.IsBanned("5.6.7.8"); banned {
		t.Fatal("expected 5.6.7.8 to not be banned")
	}

	if err := s.RemoveBan(rec.ID); err != nil {
		t.Fatalf("RemoveBan: %v", err)
	}
	if banned, _ := s.IsBanned("1.2.3.4"); banned {
		t.Fatal("expected ban to be removed")
	}
}

func TestBanExpiry(t *testing.T) {
	s := openTestStore(t)
	s.AddBan("9.9.9.9", "testing expiry", -time.Hour)

	banned, err := s.IsBanned("9.9.9.9")
	if err != nil {
		t.Fatalf("IsBanned: %v", err)
	}
	if banned {
		t.Fatal("expected an already-expired ban to not count as banned")
	}
}

func TestListBansReturnsAll(t *testing.T) {
	s := openTestStore(t)
	s.AddBan("1.1.1.1", "first", time.Hour)
	s.AddBan("2.2.2.2", "second", time.Hour)

	bans, err := s.ListBans()
	if err != nil {
		t.Fatalf("ListBans: %v", err)
	}
	if len(bans) != 2 {
		t.Fatalf("got %d bans, want 2", len(bans))
	}
}

func TestCvarHistoryRecordsInOrder(t *testing.T) {
	s := openTestStore(t)
	s.RecordCvarChange("sv_cheats", "0")
	s.RecordCvarChange("sv_cheats", "1")

	hist, err := s.CvarHistory("sv_cheats")
	if err != nil {
		t.Fatalf("CvarHistory: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("got %d entries, want 2", len(hist))
	}
	if hist[0].Value != "0" || hist[1].Value != "1" {
		t.Fatalf("unexpected history order: %+v", hist)
	}
}

func TestDemoCatalogueAddAndList(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.AddDemo("demos/match1.tvd", "q2dm1", 5*time.Minute)
	if err != nil {
		t.Fatalf("AddDemo: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected a generated demo ID")
	}

	demos, err := s.ListDemos()
	if err != nil {
		t.Fatalf("ListDemos: %v", err)
	}
	if len(demos) != 1 || demos[0].Map != "q2dm1" {
		t.Fatalf("unexpected demo catalogue: %+v", demos)
	}
	if demos[0].Describe() == "" {
		t.Fatal("expected a non-empty description")
	}
}
