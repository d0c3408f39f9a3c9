package types

import (
	"testing"
	"time"
)

func TestStateFromCode(t *testing.T) {
	tests := []struct {
		code       int
		status     Status
		resolution Resolution
	}{
		{0, StatusVerified, ResolutionNone},
		{1, StatusUnconfirmed, ResolutionNone},
		{2, StatusResolved, ResolutionSuspended},
		{3, StatusResolved, ResolutionFeedback},
		{4, StatusResolved, ResolutionTest},
		{5, StatusResolved, ResolutionNone},
		{6, StatusInProgress, ResolutionNone},
		{7, StatusResolved, ResolutionPartial},
		{8, StatusUnconfirmed, ResolutionNone},
		{-1, StatusUnconfirmed, ResolutionNone},
	}

	for _, tt := range tests {
		status, resolution := StateFromCode(tt.code)
		if status != tt.status || resolution != tt.resolution {
			t.Errorf("StateFromCode(%d) = (%s, %q), want (%s, %q)",
				tt.code, status, resolution, tt.status, tt.resolution)
		}
	}
}

func TestTouchKeepsMaximum(t *testing.T) {
	bug := NewBug(42)
	t1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

	bug.Touch(t2)
	bug.Touch(t1)
	if !bug.LastChange.Equal(t2) {
		t.Errorf("LastChange = %v, want %v", bug.LastChange, t2)
	}

	bug.AddNote(&Note{Author: "carol", Time: t2.Add(time.Hour), Text: "later"})
	if !bug.LastChange.Equal(t2.Add(time.Hour)) {
		t.Errorf("LastChange after AddNote = %v, want %v", bug.LastChange, t2.Add(time.Hour))
	}
}

func TestRemoveNote(t *testing.T) {
	bug := NewBug(1)
	a := &Note{Author: "a", Text: "first"}
	b := &Note{Author: "b", Text: "second"}
	bug.AddNote(a)
	bug.AddNote(b)

	bug.RemoveNote(a)
	if len(bug.Notes) != 1 || bug.Notes[0] != b {
		t.Fatalf("expected only the second note to remain, got %d notes", len(bug.Notes))
	}

	// Removing a note that is not present is a no-op.
	bug.RemoveNote(a)
	if len(bug.Notes) != 1 {
		t.Fatalf("expected RemoveNote of absent note to be a no-op")
	}
}

func TestIsPatch(t *testing.T) {
	tests := []struct {
		mimeType string
		want     bool
	}{
		{"text/x-diff", true},
		{"text/x-patch", true},
		{"text/plain", false},
		{"application/octet-stream", false},
	}
	for _, tt := range tests {
		a := Attachment{Filename: "fix", MimeType: tt.mimeType}
		if got := a.IsPatch(); got != tt.want {
			t.Errorf("IsPatch(%s) = %v, want %v", tt.mimeType, got, tt.want)
		}
	}
}
