// Package importer drives a batch import of JitterBug spool
// directories into a Bugzilla database.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bugzilla-contrib/jbtools/internal/config"
	"github.com/bugzilla-contrib/jbtools/internal/identity"
	"github.com/bugzilla-contrib/jbtools/internal/jitterbug"
	"github.com/bugzilla-contrib/jbtools/internal/store"
	"github.com/bugzilla-contrib/jbtools/internal/types"
)

// Result summarizes one batch run.
type Result struct {
	Imported int
	Skipped  int
	Failed   int
}

// privatePrefixes are stripped from the subject of bugs that are not
// actually private; the markers only made sense inside JitterBug.
var privatePrefixes = []string{"SECURITY:", "PRIVATE:"}

// Run imports every bug found in dirs. Lookup failures before the
// first bug (product, component, group, assignee) abort the whole run;
// failures on a single bug are reported to stderr and counted, and the
// run continues.
func Run(ctx context.Context, st store.Store, cfg *config.Import, dirs []string) (*Result, error) {
	resolver := identity.NewResolver(st, cfg.Domain, cfg.Aliases)

	productID, err := st.ProductID(ctx, cfg.Product)
	if err != nil {
		return nil, err
	}
	componentID, err := st.ComponentID(ctx, productID, cfg.Component)
	if err != nil {
		return nil, err
	}
	groupID, err := st.GroupID(ctx, cfg.Group)
	if err != nil {
		return nil, err
	}
	assigneeID, err := resolver.Resolve(ctx, cfg.Assignee)
	if err != nil {
		return nil, err
	}

	defs, err := st.KeywordDefs(ctx)
	if err != nil {
		return nil, err
	}
	keywords := make([]jitterbug.Keyword, len(defs))
	for i, d := range defs {
		keywords[i] = jitterbug.Keyword{ID: d.ID, Name: d.Name}
	}

	paths, err := collectBugFiles(dirs)
	if err != nil {
		return nil, err
	}

	opts := jitterbug.Options{
		Location: cfg.Location,
		Reporter: cfg.Reporter,
		Keywords: keywords,
	}

	result := &Result{}
	for i, path := range paths {
		fmt.Printf("[%d/%d] Processing %s\n", i+1, len(paths), path)

		number, _ := strconv.Atoi(filepath.Base(path))
		exists, err := st.BugExists(ctx, number)
		if err != nil {
			return nil, fmt.Errorf("check bug %d: %w", number, err)
		}
		if exists {
			fmt.Printf("Bug %d exists, skipping\n", number)
			result.Skipped++
			continue
		}

		bug, err := jitterbug.Read(path, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			result.Failed++
			continue
		}

		record, err := assemble(ctx, st, resolver, cfg, bug, ids{
			product:   productID,
			component: componentID,
			group:     groupID,
			assignee:  assigneeID,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: bug %d: %v\n", bug.Number, err)
			result.Failed++
			continue
		}

		if err := st.InsertBug(ctx, record); err != nil {
			fmt.Fprintf(os.Stderr, "Error: bug %d: %v\n", bug.Number, err)
			result.Failed++
			continue
		}
		result.Imported++
	}

	if err := st.SyncBugSequence(ctx); err != nil {
		return result, err
	}
	return result, nil
}

type ids struct {
	product   int64
	component int64
	group     int64
	assignee  int64
}

// assemble turns a parsed bug into an insert-ready record: it applies
// the status/resolution fixups, strips stale subject markers, settles
// the version, orders the notes and resolves every author to a
// profile id.
func assemble(ctx context.Context, st store.Store, resolver *identity.Resolver, cfg *config.Import, bug *types.Bug, ids ids) (*store.BugRecord, error) {
	status, resolution := bug.Status, bug.Resolution
	if status == types.StatusResolved && resolution == types.ResolutionNone {
		resolution = types.ResolutionFixed
	}
	if status == types.StatusVerified {
		resolution = types.ResolutionFixed
	}

	shortDesc := bug.ShortDesc
	if !bug.Private {
		for _, prefix := range privatePrefixes {
			if rest, ok := strings.CutPrefix(shortDesc, prefix); ok {
				shortDesc = strings.TrimSpace(rest)
				break
			}
		}
	}

	version := cfg.Version
	if bug.SniffedVersion != "" {
		known, err := st.VersionExists(ctx, ids.product, bug.SniffedVersion)
		if err != nil {
			return nil, err
		}
		if known {
			version = bug.SniffedVersion
		}
	}

	reporterID, err := resolver.Resolve(ctx, bug.From)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(bug.Notes, func(i, j int) bool {
		return bug.Notes[i].Time.Before(bug.Notes[j].Time)
	})
	comments := make([]store.Comment, 0, len(bug.Notes))
	for _, n := range bug.Notes {
		whoID, err := resolver.Resolve(ctx, n.Author)
		if err != nil {
			return nil, err
		}
		comments = append(comments, store.Comment{WhoID: whoID, At: n.Time, Text: n.Text})
	}

	attachments := make([]store.AttachmentRecord, 0, len(bug.Attachments))
	for _, a := range bug.Attachments {
		submitterID, err := resolver.Resolve(ctx, a.Submitter)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, store.AttachmentRecord{
			Filename:    a.Filename,
			MimeType:    a.MimeType,
			Data:        a.Data,
			CreatedAt:   a.Time,
			SubmitterID: submitterID,
			IsPatch:     a.IsPatch(),
		})
	}

	keywordIDs := make([]int64, 0, len(bug.KeywordIDs))
	for id := range bug.KeywordIDs {
		keywordIDs = append(keywordIDs, id)
	}
	sort.Slice(keywordIDs, func(i, j int) bool { return keywordIDs[i] < keywordIDs[j] })

	return &store.BugRecord{
		ID:            bug.Number,
		AssigneeID:    ids.assignee,
		Status:        status,
		Resolution:    resolution,
		ReporterID:    reporterID,
		CreatedAt:     bug.ReportedAt,
		LastChange:    bug.LastChange,
		ShortDesc:     shortDesc,
		Description:   bug.Description,
		Version:       version,
		ProductID:     ids.product,
		ComponentID:   ids.component,
		Everconfirmed: status != types.StatusUnconfirmed,
		Private:       bug.Private,
		GroupID:       ids.group,
		KeywordIDs:    keywordIDs,
		Comments:      comments,
		Attachments:   attachments,
	}, nil
}

// collectBugFiles lists the numeric spool files across all directories
// in ascending bug-number order. Companion files (.state, .audit,
// .reply.* and the rest) never match because of their suffixes.
func collectBugFiles(dirs []string) ([]string, error) {
	type entry struct {
		number int
		path   string
	}
	var entries []entry

	for _, dir := range dirs {
		listing, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read spool directory: %w", err)
		}
		for _, item := range listing {
			if item.IsDir() {
				continue
			}
			number, err := strconv.Atoi(item.Name())
			if err != nil {
				continue
			}
			entries = append(entries, entry{number, filepath.Join(dir, item.Name())})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].number < entries[j].number })
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.path
	}
	return paths, nil
}
