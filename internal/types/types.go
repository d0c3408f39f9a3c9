// Package types defines the records assembled while importing a
// JitterBug bug directory into Bugzilla.
package types

import "time"

// Status is a Bugzilla bug status.
type Status string

// Bug status constants (the subset JitterBug state codes map onto).
const (
	StatusUnconfirmed Status = "UNCONFIRMED"
	StatusVerified    Status = "VERIFIED"
	StatusResolved    Status = "RESOLVED"
	StatusInProgress  Status = "IN_PROGRESS"
)

// Resolution is a Bugzilla resolution. Empty means unresolved.
type Resolution string

const (
	ResolutionNone      Resolution = ""
	ResolutionFixed     Resolution = "FIXED"
	ResolutionSuspended Resolution = "SUSPENDED"
	ResolutionFeedback  Resolution = "FEEDBACK"
	ResolutionTest      Resolution = "TEST"
	ResolutionPartial   Resolution = "PARTIAL"
)

// StateFromCode maps a JitterBug <bug>.state code to a (status,
// resolution) pair. Unknown codes behave like a missing state file and
// map to UNCONFIRMED with no resolution.
func StateFromCode(code int) (Status, Resolution) {
	switch code {
	case 0:
		return StatusVerified, ResolutionNone
	case 1:
		return StatusUnconfirmed, ResolutionNone
	case 2:
		return StatusResolved, ResolutionSuspended
	case 3:
		return StatusResolved, ResolutionFeedback
	case 4:
		return StatusResolved, ResolutionTest
	case 5:
		return StatusResolved, ResolutionNone
	case 6:
		return StatusInProgress, ResolutionNone
	case 7:
		return StatusResolved, ResolutionPartial
	}
	return StatusUnconfirmed, ResolutionNone
}

// Note is one comment attached to a bug. Author carries the raw
// address or header it was recovered from; identity resolution happens
// at persist time.
type Note struct {
	Author string
	Time   time.Time
	Text   string
}

// Attachment is one file extracted from a multipart message body.
type Attachment struct {
	Filename  string
	MimeType  string
	Data      []byte
	Time      time.Time
	Submitter string
}

// IsPatch reports whether the attachment's MIME type marks it as a
// diff/patch.
func (a *Attachment) IsPatch() bool {
	return a.MimeType == "text/x-diff" || a.MimeType == "text/x-patch"
}

// Bug is one JitterBug bug reconstructed from its on-disk files. All
// collection fields are non-nil from construction; callers never need
// to check for a missing field.
type Bug struct {
	Number      int
	ShortDesc   string
	Description string
	Status      Status
	Resolution  Resolution

	// From is the raw From header of the original report.
	From string

	ReportedAt time.Time
	LastChange time.Time

	// SniffedVersion is the value of a "Version:" line found on the
	// second line of the description, or empty. The importer decides
	// whether it names a known version for the target product.
	SniffedVersion string

	Private bool

	KeywordIDs  map[int64]bool
	Notes       []*Note
	Attachments []*Attachment
}

// NewBug returns a Bug with all collections initialized.
func NewBug(number int) *Bug {
	return &Bug{
		Number:     number,
		Status:     StatusUnconfirmed,
		KeywordIDs: make(map[int64]bool),
	}
}

// Touch folds t into the bug's last-changed timestamp, which is the
// running maximum over the report date and every note, audit entry and
// attachment timestamp.
func (b *Bug) Touch(t time.Time) {
	if t.After(b.LastChange) {
		b.LastChange = t
	}
}

// AddNote appends a note and folds its timestamp into LastChange.
func (b *Bug) AddNote(n *Note) {
	b.Notes = append(b.Notes, n)
	b.Touch(n.Time)
}

// RemoveNote removes the given note pointer from the note list. Used
// when an audit placeholder is replaced by the reply it referenced.
func (b *Bug) RemoveNote(n *Note) {
	for i, existing := range b.Notes {
		if existing == n {
			b.Notes = append(b.Notes[:i], b.Notes[i+1:]...)
			return
		}
	}
}
