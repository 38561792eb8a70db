package calls

import "testing"

func TestMediaKindValid(t *testing.T) {
	if !MediaAudio.Valid() || !MediaVideo.Valid() {
		t.Fatalf("expected audio/video to be valid")
	}
	if MediaKind("screen").Valid() {
		t.Fatalf("expected unknown media kind to be invalid")
	}
}

func TestCounterpart(t *testing.T) {
	s := &Session{ID: "c1", CallerID: "alice", CalleeID: "bob"}

	if other, ok := s.Counterpart("alice"); !ok || other != "bob" {
		t.Fatalf("expected bob, got %q ok=%v", other, ok)
	}
	if other, ok := s.Counterpart("bob"); !ok || other != "alice" {
		t.Fatalf("expected alice, got %q ok=%v", other, ok)
	}
	if _, ok := s.Counterpart("mallory"); ok {
		t.Fatalf("expected non-party to be rejected")
	}
}

func TestRecordStatusValuesAreNonEmpty(t *testing.T) {
	statuses := []RecordStatus{
		RecordRinging,
		RecordMissed,
		RecordDeclined,
		RecordCanceled,
		RecordCompleted,
	}
	for _, s := range statuses {
		if s == "" {
			t.Fatalf("expected non-empty status")
		}
	}
}
