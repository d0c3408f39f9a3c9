package jitterbug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bugzilla-contrib/jbtools/internal/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func defaultOptions() Options {
	return Options{Location: time.UTC, Reporter: "importer@example.com"}
}

const baseReport = "From: alice@example.com\r\n" +
	"Subject: It crashes\r\n" +
	"Date: Tue, 4 Jan 2000 10:30:00 +0000\r\n" +
	"\r\n" +
	"It crashes.\r\n"

func TestReadBaseReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "17")
	writeFile(t, path, baseReport)

	bug, err := Read(path, defaultOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if bug.Number != 17 {
		t.Errorf("Number = %d", bug.Number)
	}
	if bug.Status != types.StatusUnconfirmed || bug.Resolution != types.ResolutionNone {
		t.Errorf("state = %s/%q", bug.Status, bug.Resolution)
	}
	if bug.From != "alice@example.com" {
		t.Errorf("From = %q", bug.From)
	}
	if bug.ShortDesc != "It crashes" {
		t.Errorf("ShortDesc = %q", bug.ShortDesc)
	}
	if strings.TrimSpace(bug.Description) != "It crashes." {
		t.Errorf("Description = %q", bug.Description)
	}
	want := time.Date(2000, 1, 4, 10, 30, 0, 0, time.UTC)
	if !bug.ReportedAt.Equal(want) || !bug.LastChange.Equal(want) {
		t.Errorf("ReportedAt = %v, LastChange = %v", bug.ReportedAt, bug.LastChange)
	}
	if bug.Private {
		t.Error("bug without marker file flagged private")
	}
}

func TestReadStateAndPrivate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "3")
	writeFile(t, path, baseReport)
	writeFile(t, path+".state", "2\n")
	writeFile(t, path+".private", "")

	bug, err := Read(path, defaultOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if bug.Status != types.StatusResolved || bug.Resolution != types.ResolutionSuspended {
		t.Errorf("state = %s/%q", bug.Status, bug.Resolution)
	}
	if !bug.Private {
		t.Error("private marker not picked up")
	}
}

func TestReadGarbledStateFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "4")
	writeFile(t, path, baseReport)
	writeFile(t, path+".state", "resolved\n")

	bug, err := Read(path, defaultOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if bug.Status != types.StatusUnconfirmed {
		t.Errorf("Status = %s, want UNCONFIRMED", bug.Status)
	}
}

func TestSniffVersion(t *testing.T) {
	report := "From: alice@example.com\r\n" +
		"Subject: broken\r\n" +
		"Date: Tue, 4 Jan 2000 10:30:00 +0000\r\n" +
		"\r\n" +
		"Full_Name: Alice\n" +
		"Version: 2.0.1\n" +
		"OS: Linux\n"

	dir := t.TempDir()
	path := filepath.Join(dir, "5")
	writeFile(t, path, report)

	bug, err := Read(path, defaultOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if bug.SniffedVersion != "2.0.1" {
		t.Errorf("SniffedVersion = %q, want 2.0.1", bug.SniffedVersion)
	}
}

func TestNotesKeywordsAndAuthor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "6")
	writeFile(t, path, baseReport)
	writeFile(t, path+".notes", "Looks like a REGRESSION to me.\n")

	opts := defaultOptions()
	opts.Keywords = []Keyword{{ID: 2, Name: "regression"}, {ID: 3, Name: "dataloss"}}

	bug, err := Read(path, opts)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bug.KeywordIDs[2] || bug.KeywordIDs[3] {
		t.Errorf("KeywordIDs = %v", bug.KeywordIDs)
	}
	if len(bug.Notes) != 1 {
		t.Fatalf("Notes = %d, want 1", len(bug.Notes))
	}
	if bug.Notes[0].Author != "importer@example.com" {
		t.Errorf("note author = %q", bug.Notes[0].Author)
	}
}

func TestAuditMergesConsecutiveLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "7")
	writeFile(t, path, baseReport)
	writeFile(t, path+".audit",
		"Tue, 4 Jan 2000 12:00:00 +0000\tcarol\tpart one\n"+
			"Tue, 4 Jan 2000 12:00:00 +0000\tcarol\tpart two\n"+
			"Tue, 4 Jan 2000 13:00:00 +0000\tcarol\tlater entry\n")

	bug, err := Read(path, defaultOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(bug.Notes) != 2 {
		t.Fatalf("Notes = %d, want 2", len(bug.Notes))
	}
	if bug.Notes[0].Text != "part one\npart two" {
		t.Errorf("merged note = %q", bug.Notes[0].Text)
	}
	if bug.Notes[1].Text != "later entry" {
		t.Errorf("second note = %q", bug.Notes[1].Text)
	}
	want := time.Date(2000, 1, 4, 13, 0, 0, 0, time.UTC)
	if !bug.LastChange.Equal(want) {
		t.Errorf("LastChange = %v, want %v", bug.LastChange, want)
	}
}

func TestAuditTimestampsWithoutZone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "12")
	writeFile(t, path, baseReport)
	writeFile(t, path+".audit",
		"2020-01-01T00:00:00\tcarol\tpart one\n"+
			"2020-01-01T00:00:00\tcarol\tpart two\n")

	bug, err := Read(path, defaultOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(bug.Notes) != 1 {
		t.Fatalf("Notes = %d, want 1", len(bug.Notes))
	}
	if bug.Notes[0].Text != "part one\npart two" {
		t.Errorf("merged note = %q", bug.Notes[0].Text)
	}

	want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if !bug.Notes[0].Time.Equal(want) {
		t.Errorf("note time = %v, want %v", bug.Notes[0].Time, want)
	}
	if !bug.LastChange.Equal(want) {
		t.Errorf("LastChange = %v, want the audit timestamp %v", bug.LastChange, want)
	}
}

func TestReplyReplacesAuditPlaceholder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "8")
	writeFile(t, path, baseReport)
	writeFile(t, path+".audit",
		"Tue, 4 Jan 2000 12:00:00 +0000\tcarol\tsent reply 1\n")
	writeFile(t, path+".reply.1",
		"From: relay@example.com\r\n"+
			"Date: Tue, 4 Jan 2000 12:00:00 +0000\r\n"+
			"\r\n"+
			"Fixed in the nightly build.\r\n")

	bug, err := Read(path, defaultOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(bug.Notes) != 1 {
		t.Fatalf("Notes = %d, want 1 (placeholder replaced)", len(bug.Notes))
	}
	note := bug.Notes[0]
	if note.Author != "carol" {
		t.Errorf("reply author = %q, want the audit actor", note.Author)
	}
	if strings.TrimSpace(note.Text) != "Fixed in the nightly build." {
		t.Errorf("reply text = %q", note.Text)
	}
}

func TestReplyWithoutAuditEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "9")
	writeFile(t, path, baseReport)
	writeFile(t, path+".reply.2",
		"From: dave@example.com\r\n"+
			"Date: Tue, 4 Jan 2000 14:00:00 +0000\r\n"+
			"\r\n"+
			"Any news on this?\r\n")

	bug, err := Read(path, defaultOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(bug.Notes) != 1 {
		t.Fatalf("Notes = %d, want 1", len(bug.Notes))
	}
	if bug.Notes[0].Author != "dave@example.com" {
		t.Errorf("author = %q, want the reply's own sender", bug.Notes[0].Author)
	}
}

func TestFollowupWithAttachment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "10")
	writeFile(t, path, baseReport)
	writeFile(t, path+".followup.1",
		"From: bob@example.com\r\n"+
			"Date: Tue, 4 Jan 2000 15:00:00 +0000\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: multipart/mixed; boundary=SEP\r\n"+
			"\r\n"+
			"--SEP\r\n"+
			"Content-Type: text/plain\r\n"+
			"\r\n"+
			"Here is a patch.\r\n"+
			"--SEP\r\n"+
			"Content-Type: text/x-diff\r\n"+
			"Content-Disposition: attachment; filename=\"fix.diff\"\r\n"+
			"\r\n"+
			"--- a\r\n+++ b\r\n"+
			"--SEP--\r\n")

	bug, err := Read(path, defaultOptions())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(bug.Notes) != 1 {
		t.Fatalf("Notes = %d, want 1", len(bug.Notes))
	}
	if bug.Notes[0].Author != "bob@example.com" {
		t.Errorf("followup author = %q", bug.Notes[0].Author)
	}
	if len(bug.Attachments) != 1 {
		t.Fatalf("Attachments = %d, want 1", len(bug.Attachments))
	}
	att := bug.Attachments[0]
	if att.Filename != "fix.diff" || att.MimeType != "text/x-diff" || !att.IsPatch() {
		t.Errorf("attachment = %+v", att)
	}
	if att.Submitter != "bob@example.com" {
		t.Errorf("attachment submitter = %q", att.Submitter)
	}
	want := time.Date(2000, 1, 4, 15, 0, 0, 0, time.UTC)
	if !bug.LastChange.Equal(want) {
		t.Errorf("LastChange = %v, want %v", bug.LastChange, want)
	}
}

func TestReadRejectsNonNumericName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "README")
	writeFile(t, path, baseReport)

	if _, err := Read(path, defaultOptions()); err == nil {
		t.Fatal("expected error for non-numeric bug file name")
	}
}

func TestReadMissingFromIsFatalForBug(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "11")
	writeFile(t, path, "Subject: orphan\r\nDate: Tue, 4 Jan 2000 10:30:00 +0000\r\n\r\nno sender\r\n")

	if _, err := Read(path, defaultOptions()); err == nil {
		t.Fatal("expected error for missing From header")
	}
}
