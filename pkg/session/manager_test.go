package session

import (
	"testing"
	"time"
)

func TestManager_GetOrCreate(t *testing.T) {
	m := NewManager()
	s1 := m.GetOrCreate("resp-1")
	s1.SetLanguage("en")

	s2 := m.GetOrCreate("resp-1")
	if s2.Language() != "en" {
		t.Fatalf("expected same session returned, got language %q", s2.Language())
	}
	if m.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", m.Count())
	}
}

func TestManager_Get_Missing(t *testing.T) {
	m := NewManager()
	if _, ok := m.Get("nope"); ok {
		t.Fatal("expected no session for unknown id")
	}
}

func TestManager_Delete(t *testing.T) {
	m := NewManager()
	m.GetOrCreate("resp-1")
	m.Delete("resp-1")
	if m.Count() != 0 {
		t.Fatalf("expected 0 sessions after delete, got %d", m.Count())
	}
}

func TestManager_EvictIdle(t *testing.T) {
	m := NewManager()
	m.GetOrCreate("stale")
	now := time.Now()

	// Simulate the passage of time by evicting with a one-minute max idle
	// relative to a "now" set an hour after the access above.
	evicted := m.EvictIdle(now.Add(time.Hour), time.Minute)
	if len(evicted) != 1 || evicted[0] != "stale" {
		t.Fatalf("expected [stale] evicted, got %v", evicted)
	}
	if m.Count() != 0 {
		t.Fatalf("expected 0 sessions remaining, got %d", m.Count())
	}
}

func TestManager_EvictIdle_KeepsFresh(t *testing.T) {
	m := NewManager()
	m.GetOrCreate("fresh")

	evicted := m.EvictIdle(time.Now(), time.Hour)
	if len(evicted) != 0 {
		t.Fatalf("expected nothing evicted, got %v", evicted)
	}
}
