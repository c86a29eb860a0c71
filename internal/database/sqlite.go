// Package database implements the TreeStore interface on SQLite.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"subtree-go/internal/subtree"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements subtree.TreeStore using SQLite. Tree mutations run
// inside transactions so a submission either has its whole tree or none of
// it.
type SQLiteStore struct {
	db    *sql.DB
	clock subtree.Clock
	ids   subtree.KeyGenerator
	path  string
}

var _ subtree.TreeStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path, which can be
// ":memory:" for tests. Nil clock and ids select the real implementations.
func NewSQLiteStore(path string, clock subtree.Clock, ids subtree.KeyGenerator) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = subtree.RealClock{}
	}
	if ids == nil {
		ids = subtree.UUIDGenerator{}
	}
	return &SQLiteStore{db: db, clock: clock, ids: ids, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller is
// responsible for the connection's configuration and lifetime.
func NewSQLiteStoreFromDB(db *sql.DB, clock subtree.Clock, ids subtree.KeyGenerator) *SQLiteStore {
	if clock == nil {
		clock = subtree.RealClock{}
	}
	if ids == nil {
		ids = subtree.UUIDGenerator{}
	}
	return &SQLiteStore{db: db, clock: clock, ids: ids}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. Exported for tools and tests.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite ships with foreign keys off.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// DB exposes the underlying connection for migrations.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const fileColumns = "id, submission_id, name, disk_name, parent_id, is_directory, owner, modified_at"

// visibleCond is the owner exclusion filter. An empty exclude matches every
// record.
const visibleCond = "(? = '' OR owner <> ?)"

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(row scanner) (*subtree.File, error) {
	var f subtree.File
	var diskName, parentID sql.NullString
	var owner string
	err := row.Scan(&f.ID, &f.SubmissionID, &f.Name, &diskName, &parentID,
		&f.IsDirectory, &owner, &f.ModifiedAt)
	if err != nil {
		return nil, err
	}
	f.DiskName = diskName.String
	f.ParentID = parentID.String
	f.Owner = subtree.Owner(owner)
	return &f, nil
}

// nullable maps the in-memory empty string to SQL NULL for disk_name and
// parent_id.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLiteStore) InsertTree(submissionID string, root *subtree.Dir) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRow(
		"SELECT id FROM files WHERE submission_id = ? AND parent_id IS NULL",
		submissionID,
	).Scan(&existing)
	switch {
	case err == nil:
		return "", fmt.Errorf("submission %s: %w", submissionID, subtree.ErrTreeExists)
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("checking for existing tree: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO files (" + fileColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := s.clock.Now()
	var insert func(n subtree.Node, parentID string) (string, error)
	insert = func(n subtree.Node, parentID string) (string, error) {
		id := s.ids.New()
		switch node := n.(type) {
		case *subtree.Dir:
			_, err := stmt.Exec(id, submissionID, node.Name, nil, nullable(parentID),
				true, string(subtree.OwnerBoth), now)
			if err != nil {
				return "", fmt.Errorf("inserting directory %s: %w", node.Name, err)
			}
			for _, child := range node.Entries {
				if _, err := insert(child, id); err != nil {
					return "", err
				}
			}
		case *subtree.Leaf:
			_, err := stmt.Exec(id, submissionID, node.Name, node.DiskName, nullable(parentID),
				false, string(subtree.OwnerBoth), now)
			if err != nil {
				return "", fmt.Errorf("inserting file %s: %w", node.Name, err)
			}
		default:
			return "", fmt.Errorf("unknown node type %T", n)
		}
		return id, nil
	}

	rootID, err := insert(root, "")
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing tree: %w", err)
	}
	return rootID, nil
}

func (s *SQLiteStore) GetRoot(submissionID string, exclude subtree.Owner) (*subtree.File, error) {
	row := s.db.QueryRow(
		"SELECT "+fileColumns+" FROM files WHERE submission_id = ? AND parent_id IS NULL AND "+visibleCond,
		submissionID, string(exclude), string(exclude),
	)
	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("submission %s root: %w", submissionID, subtree.ErrNotFound)
		}
		return nil, fmt.Errorf("querying root: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) GetFile(id string) (*subtree.File, error) {
	row := s.db.QueryRow(
		"SELECT "+fileColumns+" FROM files WHERE id = ?", id,
	)
	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("file %s: %w", id, subtree.ErrNotFound)
		}
		return nil, fmt.Errorf("querying file: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) ChildrenMapping(submissionID string, exclude subtree.Owner) (map[string][]*subtree.File, error) {
	rows, err := s.db.Query(
		"SELECT "+fileColumns+" FROM files WHERE submission_id = ? AND "+visibleCond,
		submissionID, string(exclude), string(exclude),
	)
	if err != nil {
		return nil, fmt.Errorf("querying submission files: %w", err)
	}
	defer rows.Close()

	mapping := make(map[string][]*subtree.File)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		mapping[f.ParentID] = append(mapping[f.ParentID], f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating submission files: %w", err)
	}

	for _, children := range mapping {
		sort.SliceStable(children, func(i, j int) bool {
			return strings.ToLower(children[i].Name) < strings.ToLower(children[j].Name)
		})
	}
	return mapping, nil
}

func (s *SQLiteStore) FindChildren(parentID string, name string, isDir bool, exclude subtree.Owner) ([]*subtree.File, error) {
	rows, err := s.db.Query(
		"SELECT "+fileColumns+" FROM files WHERE parent_id = ? AND name = ? AND is_directory = ? AND "+visibleCond,
		parentID, name, isDir, string(exclude), string(exclude),
	)
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	defer rows.Close()

	var out []*subtree.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning child: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating children: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) HasChildNamed(parentID string, name string, exclude subtree.Owner) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM files WHERE parent_id = ? AND name = ? AND "+visibleCond+")",
		parentID, name, string(exclude), string(exclude),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking for sibling: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStore) Rename(id string, newName string, newParentID string) error {
	res, err := s.db.Exec(
		"UPDATE files SET name = ?, parent_id = ?, modified_at = ? WHERE id = ?",
		newName, nullable(newParentID), s.clock.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("renaming file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("renaming file: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("file %s: %w", id, subtree.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) SetOwner(id string, owner subtree.Owner) error {
	res, err := s.db.Exec(
		"UPDATE files SET owner = ? WHERE id = ?",
		string(owner), id,
	)
	if err != nil {
		return fmt.Errorf("setting owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting owner: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("file %s: %w", id, subtree.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteTree(submissionID string) ([]string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		"SELECT disk_name FROM files WHERE submission_id = ? AND disk_name IS NOT NULL",
		submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("collecting storage keys: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning storage key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating storage keys: %w", err)
	}
	rows.Close()

	// Children go before parents so the self-referencing foreign key never
	// sees a dangling parent mid-delete.
	if _, err := tx.Exec(
		"DELETE FROM files WHERE submission_id = ? AND parent_id IS NOT NULL",
		submissionID,
	); err != nil {
		return nil, fmt.Errorf("deleting tree records: %w", err)
	}
	if _, err := tx.Exec(
		"DELETE FROM files WHERE submission_id = ?",
		submissionID,
	); err != nil {
		return nil, fmt.Errorf("deleting root record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing delete: %w", err)
	}
	return keys, nil
}
