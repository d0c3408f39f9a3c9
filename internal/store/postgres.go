package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG talks to a Bugzilla Postgres schema through a pgx pool.
type PG struct {
	pool *pgxpool.Pool
}

// OpenPG connects to the target database.
func OpenPG(ctx context.Context, databaseURL string) (*PG, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PG{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PG) Close() {
	s.pool.Close()
}

// UserIDByEmail looks up a profile by login name. Bugzilla stores the
// canonical address as login_name.
func (s *PG) UserIDByEmail(ctx context.Context, addr string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT userid FROM profiles WHERE login_name = $1`, addr).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("look up user %s: %w", addr, err)
	}
	return id, nil
}

// CreateUser inserts a new profile row and returns its generated id.
func (s *PG) CreateUser(ctx context.Context, addr, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO profiles (login_name, realname) VALUES ($1, $2) RETURNING userid`,
		addr, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create user %s: %w", addr, err)
	}
	return id, nil
}

// ProductID resolves a product name to its id.
func (s *PG) ProductID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM products WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("no product found: %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("look up product %q: %w", name, err)
	}
	return id, nil
}

// ComponentID resolves a component within a product. With an empty
// name the product must have exactly one component; otherwise the
// choice is ambiguous and the run must not start.
func (s *PG) ComponentID(ctx context.Context, productID int64, name string) (int64, error) {
	if name != "" {
		var id int64
		err := s.pool.QueryRow(ctx,
			`SELECT id FROM components WHERE name = $1 AND product_id = $2`,
			name, productID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("no such component in product: %q: %w", name, ErrNotFound)
		}
		if err != nil {
			return 0, fmt.Errorf("look up component %q: %w", name, err)
		}
		return id, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, name FROM components WHERE product_id = $1`, productID)
	if err != nil {
		return 0, fmt.Errorf("list components: %w", err)
	}
	defer rows.Close()

	var ids []int64
	var names []string
	for rows.Next() {
		var id int64
		var n string
		if err := rows.Scan(&id, &n); err != nil {
			return 0, fmt.Errorf("scan component: %w", err)
		}
		ids = append(ids, id)
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("list components: %w", err)
	}
	if len(ids) != 1 {
		return 0, fmt.Errorf("%w: need to choose from %s", ErrAmbiguousComponent, strings.Join(names, ", "))
	}
	return ids[0], nil
}

// GroupID resolves a group name to its id.
func (s *PG) GroupID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM groups WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("no group found: %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("look up group %q: %w", name, err)
	}
	return id, nil
}

// KeywordDefs returns every keyword definition row.
func (s *PG) KeywordDefs(ctx context.Context) ([]KeywordDef, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM keyworddefs`)
	if err != nil {
		return nil, fmt.Errorf("list keyword definitions: %w", err)
	}
	defer rows.Close()

	var defs []KeywordDef
	for rows.Next() {
		var d KeywordDef
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, fmt.Errorf("scan keyword definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// VersionExists reports whether value names a known version of the
// product.
func (s *PG) VersionExists(ctx context.Context, productID int64, value string) (bool, error) {
	var v string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM versions WHERE value = $1 AND product_id = $2`,
		value, productID).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up version %q: %w", value, err)
	}
	return true, nil
}

// BugExists reports whether the bug number is already present.
func (s *PG) BugExists(ctx context.Context, number int) (bool, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT bug_id FROM bugs WHERE bug_id = $1`, number).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check bug %d: %w", number, err)
	}
	return true, nil
}

// InsertBug performs the full insert sequence for one bug as a single
// transaction: bug row, keyword rows, group membership, ordered
// comment rows, the full-text row, then attachments and their
// payloads.
func (s *PG) InsertBug(ctx context.Context, bug *BugRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	everconfirmed := 0
	if bug.Everconfirmed {
		everconfirmed = 1
	}
	isPrivate := 0
	if bug.Private {
		isPrivate = 1
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bugs
			(bug_id, assigned_to, bug_severity, bug_status, creation_ts,
			 delta_ts, lastdiffed, short_desc, op_sys, priority, product_id,
			 rep_platform, reporter, version, component_id, resolution,
			 everconfirmed)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		bug.ID, bug.AssigneeID, "normal", bug.Status, bug.CreatedAt,
		bug.LastChange, bug.LastChange, bug.ShortDesc, "All", "---", bug.ProductID,
		"All", bug.ReporterID, bug.Version, bug.ComponentID, bug.Resolution,
		everconfirmed)
	if err != nil {
		return wrapIntegrity(fmt.Errorf("insert bug %d: %w", bug.ID, err))
	}

	for _, kw := range bug.KeywordIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO keywords (bug_id, keywordid) VALUES ($1, $2)`,
			bug.ID, kw); err != nil {
			return wrapIntegrity(fmt.Errorf("insert keyword %d for bug %d: %w", kw, bug.ID, err))
		}
	}

	if bug.Private {
		if _, err := tx.Exec(ctx,
			`INSERT INTO bug_group_map (bug_id, group_id) VALUES ($1, $2)`,
			bug.ID, bug.GroupID); err != nil {
			return wrapIntegrity(fmt.Errorf("insert group membership for bug %d: %w", bug.ID, err))
		}
	}

	// The initial long description, then one row per note in ascending
	// timestamp order (the caller sorted them).
	_, err = tx.Exec(ctx, `
		INSERT INTO longdescs (bug_id, who, bug_when, thetext, isprivate)
		VALUES ($1,$2,$3,$4,$5)`,
		bug.ID, bug.ReporterID, bug.CreatedAt, bug.Description, isPrivate)
	if err != nil {
		return wrapIntegrity(fmt.Errorf("insert description for bug %d: %w", bug.ID, err))
	}

	fulltext := bug.Description
	for _, c := range bug.Comments {
		if _, err := tx.Exec(ctx, `
			INSERT INTO longdescs (bug_id, who, bug_when, thetext, isprivate)
			VALUES ($1,$2,$3,$4,$5)`,
			bug.ID, c.WhoID, c.At, c.Text, isPrivate); err != nil {
			return wrapIntegrity(fmt.Errorf("insert comment for bug %d: %w", bug.ID, err))
		}
		fulltext += c.Text
	}

	// Two full-text variants: comments carries everything,
	// comments_noprivate must not expose private comment text.
	noPrivate := fulltext
	if bug.Private {
		noPrivate = ""
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO bugs_fulltext (bug_id, short_desc, comments, comments_noprivate)
		VALUES ($1,$2,$3,$4)`,
		bug.ID, bug.ShortDesc, fulltext, noPrivate); err != nil {
		return wrapIntegrity(fmt.Errorf("insert fulltext for bug %d: %w", bug.ID, err))
	}

	for _, a := range bug.Attachments {
		isPatch := 0
		if a.IsPatch {
			isPatch = 1
		}
		var attachID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO attachments
				(bug_id, creation_ts, modification_time, description,
				 mimetype, ispatch, filename, submitter_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			RETURNING attach_id`,
			bug.ID, a.CreatedAt, a.CreatedAt, a.Filename,
			a.MimeType, isPatch, a.Filename, a.SubmitterID).Scan(&attachID)
		if err != nil {
			return wrapIntegrity(fmt.Errorf("insert attachment %s for bug %d: %w", a.Filename, bug.ID, err))
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO attach_data (id, thedata) VALUES ($1, $2)`,
			attachID, a.Data); err != nil {
			return wrapIntegrity(fmt.Errorf("insert attachment data for bug %d: %w", bug.ID, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit bug %d: %w", bug.ID, err)
	}
	return nil
}

// SyncBugSequence advances the bugs primary-key sequence past the
// highest imported bug id so later manually filed bugs do not collide.
func (s *PG) SyncBugSequence(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`SELECT setval('bugs_bug_id_seq', (SELECT max(bug_id) FROM bugs), true)`)
	if err != nil {
		return fmt.Errorf("sync bug id sequence: %w", err)
	}
	return nil
}

// wrapIntegrity tags SQLSTATE class 23 errors (integrity constraint
// violations) with ErrIntegrity so the importer can tell them apart
// from transient failures.
func wrapIntegrity(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	return err
}
