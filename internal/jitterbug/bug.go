// Package jitterbug reads one bug out of a JitterBug spool directory.
//
// A bug numbered N is the message file N plus optional companions:
// N.private (marker), N.state (numeric state code), N.notes (free
// text), N.audit (tab-delimited change log) and any number of
// N.reply.* and N.followup.* message files. Everything is folded into
// a single types.Bug.
package jitterbug

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bugzilla-contrib/jbtools/internal/mailmsg"
	"github.com/bugzilla-contrib/jbtools/internal/types"
)

// Keyword is one keyword definition to scan notes text for.
type Keyword struct {
	ID   int64
	Name string
}

// Options configures how a spool directory is read.
type Options struct {
	// Location interprets timestamps that carry no zone.
	Location *time.Location
	// Reporter is credited as the author of notes-file text, which
	// records no author of its own.
	Reporter string
	// Keywords are matched case-insensitively against notes text.
	Keywords []Keyword
}

// Read reconstructs the bug stored at path. The basename must be the
// bug number.
func Read(path string, opts Options) (*types.Bug, error) {
	number, err := strconv.Atoi(filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("bug file %s: name is not a number", path)
	}

	bug := types.NewBug(number)

	if _, err := os.Stat(path + ".private"); err == nil {
		bug.Private = true
	}
	bug.Status, bug.Resolution = readState(path + ".state")

	if err := readReport(bug, path, opts); err != nil {
		return nil, err
	}

	if err := readNotes(bug, path+".notes", opts); err != nil {
		return nil, err
	}

	pending, err := readAudit(bug, path+".audit", opts.Location)
	if err != nil {
		return nil, err
	}

	if err := readReplies(bug, path, pending, opts.Location); err != nil {
		return nil, err
	}
	if err := readFollowups(bug, path, opts.Location); err != nil {
		return nil, err
	}

	return bug, nil
}

// readState maps the state file onto a status/resolution pair. A
// missing or unreadable file behaves like state 1 (UNCONFIRMED).
func readState(path string) (types.Status, types.Resolution) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.StatusUnconfirmed, types.ResolutionNone
	}
	code, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return types.StatusUnconfirmed, types.ResolutionNone
	}
	return types.StateFromCode(code)
}

// readReport parses the base message: subject, reporter, description,
// report date and any attachments carried in the original report.
func readReport(bug *types.Bug, path string, opts Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read bug %d: %w", bug.Number, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat bug %d: %w", bug.Number, err)
	}

	msg, err := mailmsg.Parse(data, opts.Location)
	if err != nil {
		return fmt.Errorf("bug %d: %w", bug.Number, err)
	}

	if msg.From == "" {
		return fmt.Errorf("bug %d: missing from address", bug.Number)
	}
	bug.From = msg.From

	// Reports are either plain text or multipart; anything else means
	// the spool file is not what JitterBug wrote.
	if !msg.Multipart && !strings.HasPrefix(msg.ContentType, "text/") {
		return fmt.Errorf("bug %d: unknown content type %s", bug.Number, msg.ContentType)
	}

	bug.ShortDesc = msg.Subject
	if bug.ShortDesc == "" {
		fmt.Fprintf(os.Stderr, "Warning: bug %d has no subject, using Unknown\n", bug.Number)
		bug.ShortDesc = "Unknown"
	}

	// Messages that predate the spool, or lost their Date header,
	// fall back to the file's modification time.
	reported := msg.Date
	if reported.IsZero() || reported.Year() < 1900 {
		reported = info.ModTime().In(opts.Location)
	}
	bug.ReportedAt = reported
	bug.LastChange = reported

	bug.Description = msg.Body
	bug.SniffedVersion = sniffVersion(msg.Body)

	for _, p := range msg.Parts {
		if att, ok := mailmsg.ExtractAttachment(p, reported, msg.From); ok {
			bug.Attachments = append(bug.Attachments, att)
			bug.Touch(att.Time)
		}
	}
	return nil
}

// sniffVersion returns the value of a "Version:" line when it is the
// second line of the description, the convention JitterBug's submit
// form used.
func sniffVersion(description string) string {
	lines := strings.Split(description, "\n")
	if len(lines) < 2 {
		return ""
	}
	if rest, ok := strings.CutPrefix(lines[1], "Version:"); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

// readNotes folds the notes file into one note credited to the
// configured reporter, timestamped with the file's modification time.
// The text is also scanned for keyword names.
func readNotes(bug *types.Bug, path string, opts Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read notes for bug %d: %w", bug.Number, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat notes for bug %d: %w", bug.Number, err)
	}

	text := string(data)
	lower := strings.ToLower(text)
	for _, kw := range opts.Keywords {
		if strings.Contains(lower, strings.ToLower(kw.Name)) {
			bug.KeywordIDs[kw.ID] = true
		}
	}

	bug.AddNote(&types.Note{
		Author: opts.Reporter,
		Time:   info.ModTime().In(opts.Location),
		Text:   text,
	})
	return nil
}

// readReplies parses every N.reply.M file. When the audit log recorded
// the reply, its placeholder note is replaced and its actor is kept as
// the author of single-part replies. Replies the audit never mentioned
// are appended on their own.
func readReplies(bug *types.Bug, path string, pending map[int]*types.Note, loc *time.Location) error {
	files, err := filepath.Glob(path + ".reply.*")
	if err != nil {
		return fmt.Errorf("list replies for bug %d: %w", bug.Number, err)
	}
	sort.Strings(files)

	for _, f := range files {
		suffix := f[strings.LastIndexByte(f, '.')+1:]
		replyID, err := strconv.Atoi(suffix)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping reply %s: suffix is not a number\n", f)
			continue
		}

		meta := pending[replyID]
		if meta != nil {
			bug.RemoveNote(meta)
		}
		if err := readMessageNote(bug, f, meta, loc); err != nil {
			return err
		}
	}
	return nil
}

// readFollowups parses every N.followup.* file. Followups were never
// recorded in the audit log, so each stands alone.
func readFollowups(bug *types.Bug, path string, loc *time.Location) error {
	files, err := filepath.Glob(path + ".followup.*")
	if err != nil {
		return fmt.Errorf("list followups for bug %d: %w", bug.Number, err)
	}
	sort.Strings(files)

	for _, f := range files {
		if err := readMessageNote(bug, f, nil, loc); err != nil {
			return err
		}
	}
	return nil
}

// readMessageNote parses a reply or followup file into a note plus any
// attachments. Single-part messages credit the audit actor when one is
// known; multipart messages always credit their own From header.
func readMessageNote(bug *types.Bug, path string, meta *types.Note, loc *time.Location) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	msg, err := mailmsg.Parse(data, loc)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	at := msg.Date
	if at.IsZero() || at.Year() < 1900 {
		at = info.ModTime().In(loc)
	}

	// A multipart message with no inline text contributes attachments
	// only, no comment.
	if !msg.Multipart || msg.Body != "" {
		author := msg.From
		if !msg.Multipart && meta != nil && meta.Author != "" {
			author = meta.Author
		}
		if author == "" {
			return fmt.Errorf("%s: missing from address", path)
		}
		bug.AddNote(&types.Note{Author: author, Time: at, Text: msg.Body})
	}

	for _, p := range msg.Parts {
		if att, ok := mailmsg.ExtractAttachment(p, at, msg.From); ok {
			bug.Attachments = append(bug.Attachments, att)
			bug.Touch(att.Time)
		}
	}
	return nil
}
