package jitterbug

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bugzilla-contrib/jbtools/internal/mailmsg"
	"github.com/bugzilla-contrib/jbtools/internal/types"
)

// replyMarker prefixes audit entries that record an outgoing reply.
// The trailing number is the reply file suffix.
const replyMarker = "sent reply "

// readAudit folds the tab-delimited audit log into notes. Consecutive
// entries with the same timestamp and actor were one action split over
// several lines and are merged back into one note.
//
// Entries of the form "sent reply N" are placeholders for the
// N.reply.* files; the returned map lets the reply pass swap each
// placeholder for the full reply text while keeping the actor.
func readAudit(bug *types.Bug, path string, loc *time.Location) (map[int]*types.Note, error) {
	pending := map[int]*types.Note{}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return pending, nil
		}
		return nil, fmt.Errorf("read audit for bug %d: %w", bug.Number, err)
	}
	defer f.Close()

	var current *types.Note
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			fmt.Fprintf(os.Stderr, "Warning: bug %d: malformed audit line %q\n", bug.Number, line)
			continue
		}
		date, actor, text := fields[0], fields[1], fields[2]

		at := mailmsg.ParseDate(date, loc)
		bug.Touch(at)

		if current != nil && current.Time.Equal(at) && current.Author == actor {
			current.Text += "\n" + text
			continue
		}

		current = &types.Note{Author: actor, Time: at, Text: text}
		bug.AddNote(current)

		if rest, ok := strings.CutPrefix(text, replyMarker); ok {
			if id, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
				pending[id] = current
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit for bug %d: %w", bug.Number, err)
	}
	return pending, nil
}
