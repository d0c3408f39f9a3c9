// Package mailmsg parses the RFC 822 message files that make up a
// JitterBug spool (base reports, replies, followups) and turns MIME
// parts into attachments.
package mailmsg

import (
	"bytes"
	"fmt"
	"mime"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"github.com/bugzilla-contrib/jbtools/internal/types"
)

func init() {
	// Extensions the stock table misses but JitterBug spools contain.
	_ = mime.AddExtensionType(".doc", "application/msword")
	_ = mime.AddExtensionType(".log", "text/plain")
	_ = mime.AddExtensionType(".dif", "text/plain")
}

// ignoredTypes lists MIME types that never become attachments:
// transport artifacts and signatures with no archival value.
var ignoredTypes = map[string]bool{
	"application/ms-tnef":           true,
	"application/pgp-signature":     true,
	"application/x-pkcs7-signature": true,
	"application/pkcs7-signature":   true,
	"message/rfc822":                true,
	"text/x-vcard":                  true,
}

// Part is one non-body MIME part of a message.
type Part struct {
	Filename    string
	ContentType string
	Content     []byte
	// Defective is set when decoding hit a severe error and the
	// content cannot be trusted.
	Defective bool
}

// Message is a parsed JitterBug message file.
type Message struct {
	Subject string
	From    string
	// Date is the parsed Date header, zero when missing or
	// unparseable.
	Date time.Time
	// Body is the concatenated text of all inline text parts.
	Body string
	// ContentType is the root content type, "text/plain" when the
	// message declared none.
	ContentType string
	// Multipart reports whether the message had a multipart root.
	Multipart bool
	Parts     []Part
}

// Parse reads one message file. Timestamps without a zone are
// interpreted in loc.
func Parse(data []byte, loc *time.Location) (*Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}

	msg := &Message{
		Subject: env.GetHeader("Subject"),
		From:    env.GetHeader("From"),
		Body:    env.Text,
	}
	msg.ContentType = "text/plain"
	if env.Root != nil && env.Root.ContentType != "" {
		msg.ContentType = env.Root.ContentType
		msg.Multipart = strings.HasPrefix(env.Root.ContentType, "multipart/")
	}
	if raw := env.GetHeader("Date"); raw != "" {
		msg.Date = ParseDate(raw, loc)
	}

	for _, group := range [][]*enmime.Part{env.Attachments, env.Inlines, env.OtherParts} {
		for _, p := range group {
			part := Part{
				Filename:    p.FileName,
				ContentType: p.ContentType,
				Content:     p.Content,
			}
			for _, e := range p.Errors {
				if e.Severe {
					part.Defective = true
					break
				}
			}
			msg.Parts = append(msg.Parts, part)
		}
	}
	return msg, nil
}

// naiveLayouts cover timestamps that lost their zone or weekday on the
// way through JitterBug.
var naiveLayouts = []string{
	"Mon Jan _2 15:04:05 2006",
	"2 Jan 2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseDate parses a Date header or audit timestamp. Zoneless forms
// are interpreted in loc. Returns the zero time when nothing matches.
func ParseDate(s string, loc *time.Location) time.Time {
	s = strings.TrimSpace(s)
	if t, err := mail.ParseDate(s); err == nil {
		return t
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ExtractAttachment turns a MIME part into an attachment, or reports
// false when the part should be dropped: no filename, a type in the
// ignore set, or defective content. Generic octet-stream types are
// refined by filename extension when the table knows better.
func ExtractAttachment(p Part, at time.Time, submitter string) (*types.Attachment, bool) {
	if p.Filename == "" {
		return nil, false
	}
	if p.Defective {
		fmt.Fprintf(os.Stderr, "Warning: failed to decode payload for %s, skipping\n", p.Filename)
		return nil, false
	}

	mimeType := strings.ToLower(p.ContentType)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if ignoredTypes[mimeType] {
		return nil, false
	}

	if mimeType == "application/octet-stream" || mimeType == "" {
		if guessed := mime.TypeByExtension(filepath.Ext(p.Filename)); guessed != "" {
			if i := strings.IndexByte(guessed, ';'); i >= 0 {
				guessed = guessed[:i]
			}
			mimeType = guessed
		} else if mimeType == "" {
			mimeType = "application/octet-stream"
		}
	}

	return &types.Attachment{
		Filename:  p.Filename,
		MimeType:  mimeType,
		Data:      p.Content,
		Time:      at,
		Submitter: submitter,
	}, true
}
