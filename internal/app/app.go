// Package app is the application layer between the CLI and the Service. It
// constructs all dependencies from config, exposes operations that accept
// raw strings, and manages resource lifecycles on Close.
package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"subtree-go/internal/archive"
	"subtree-go/internal/blob"
	"subtree-go/internal/config"
	"subtree-go/internal/database"
	"subtree-go/internal/database/migrations"
	"subtree-go/internal/encryption"
	"subtree-go/internal/ignore"
	"subtree-go/internal/subtree"
)

// App wires the tree store, blob store, decoder and encryptor into a
// Service. The caller must call Close when done.
type App struct {
	cfg       *config.Config
	store     subtree.TreeStore
	blobs     subtree.BlobStore
	encryptor subtree.Encryptor
	service   *subtree.Service
	logFile   *os.File
}

// New creates a fully wired App from the given config. operation identifies
// the CLI command being run and tags every log line.
func New(cfg *config.Config, operation string) (*App, error) {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	blobs, err := blob.NewStoreFromConfig(cfg.Storage, enc)
	if err != nil {
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	store, err := database.NewStoreFromConfig(cfg.Database, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating tree store: %w", err)
	}

	if sq, ok := store.(*database.SQLiteStore); ok {
		if cfg.Database.Type == "memory" {
			// Fresh in-memory databases always need the schema.
			if err := migrations.MigrateUp(sq.DB()); err != nil {
				store.Close()
				return nil, fmt.Errorf("migrating database: %w", err)
			}
		} else if err := migrations.CheckStatus(sq.DB()); err != nil {
			store.Close()
			return nil, fmt.Errorf("database schema out of date: %w", err)
		}
	}

	opID := operation + "-" + time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	maxFileSize := cfg.Ingest.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = config.DefaultMaxFileSize
	}

	reservedNames := cfg.Ingest.ReservedNames
	if len(reservedNames) == 0 {
		reservedNames = subtree.DefaultReservedNames
	}

	svc := subtree.NewService(
		store,
		blobs,
		archive.NewDecoder(maxFileSize),
		subtree.NewReservedNames(reservedNames),
		&slogAdapter{l: logger},
		subtree.RealClock{},
		subtree.UUIDGenerator{},
		maxFileSize,
	)

	return &App{
		cfg:       cfg,
		store:     store,
		blobs:     blobs,
		encryptor: enc,
		service:   svc,
		logFile:   logFile,
	}, nil
}

// Service exposes the underlying service for callers that need it directly.
func (a *App) Service() *subtree.Service { return a.service }

// Encryptor exposes the configured encryptor for key management commands.
func (a *App) Encryptor() subtree.Encryptor { return a.encryptor }

// Unlock enables reads from encrypted storage. It is a no-op for
// unencrypted backends.
func (a *App) Unlock(passphrase string) error {
	es, ok := a.blobs.(*blob.EncryptedStore)
	if !ok {
		return nil
	}
	return es.Unlock(passphrase)
}

// Locked reports whether reads require Unlock first.
func (a *App) Locked() bool {
	_, ok := a.blobs.(*blob.EncryptedStore)
	return ok
}

// Ingest reads the given files, builds a logical tree from them, and
// persists it under submissionID. Archives among the paths are extracted;
// plain files are stored as-is. It returns the warnings accumulated during
// ingestion.
func (a *App) Ingest(submissionID string, paths []string, policy subtree.IgnorePolicy, ignoreFile string, forcePlain bool) ([]string, error) {
	filter, err := a.buildFilter(ignoreFile)
	if err != nil {
		return nil, err
	}

	maxSize := a.cfg.Ingest.MaxSize
	if maxSize <= 0 {
		maxSize = config.DefaultMaxSize
	}

	uploads := make([]subtree.Upload, 0, len(paths))
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("opening upload: %w", err)
		}
		files = append(files, f)
		uploads = append(uploads, subtree.Upload{Name: filepath.Base(p), Content: f})
	}

	tree, warnings, err := a.service.Ingest(uploads, subtree.IngestOptions{
		MaxSize:    maxSize,
		Policy:     policy,
		Filter:     filter,
		ForcePlain: forcePlain,
	})
	if err != nil {
		return warnings, err
	}

	if err := a.service.Materialize(submissionID, tree); err != nil {
		return warnings, err
	}
	return warnings, nil
}

// buildFilter loads the ignore filter: an explicit file wins over the
// config's default rules.
func (a *App) buildFilter(ignoreFile string) (subtree.IgnoreFilter, error) {
	if ignoreFile != "" {
		f, err := ignore.NewFromFile(ignoreFile)
		if err != nil {
			return nil, fmt.Errorf("loading ignore file: %w", err)
		}
		return f, nil
	}
	f, err := ignore.New(a.cfg.Ingest.Ignore)
	if err != nil {
		return nil, fmt.Errorf("parsing configured ignore rules: %w", err)
	}
	return f, nil
}

// List returns the listing of a submission's tree, rooted at startID when
// given.
func (a *App) List(submissionID string, exclude subtree.Owner, startID string) (*subtree.Listing, error) {
	return a.service.List(submissionID, exclude, startID)
}

// Search resolves a slash-separated path inside a submission's tree.
func (a *App) Search(submissionID string, path string, exclude subtree.Owner) (*subtree.File, error) {
	return a.service.Search(submissionID, path, exclude)
}

// Stat returns the metadata summary for a single record.
func (a *App) Stat(fileID string) (*subtree.FileStat, error) {
	return a.service.Stat(fileID)
}

// FileContents streams a leaf's bytes to w.
func (a *App) FileContents(fileID string, w io.Writer) error {
	rc, err := a.service.FileContents(fileID)
	if err != nil {
		return err
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("reading file contents: %w", err)
	}
	return nil
}

// Rename moves or renames a record. An empty newParentID keeps the
// record's current parent.
func (a *App) Rename(fileID string, newName string, newParentID string, exclude subtree.Owner) error {
	if newParentID == "" {
		f, err := a.service.GetFile(fileID)
		if err != nil {
			return err
		}
		newParentID = f.ParentID
	}
	return a.service.Rename(fileID, newName, newParentID, exclude)
}

// SetOwner retags a record's ownership.
func (a *App) SetOwner(fileID string, owner subtree.Owner) error {
	return a.service.SetOwner(fileID, owner)
}

// Restore writes a submission's tree under dest and returns the root
// directory name.
func (a *App) Restore(submissionID string, exclude subtree.Owner, dest string) (string, error) {
	return a.service.Restore(submissionID, exclude, dest)
}

// ExportZip writes a submission's tree as a zip archive to outPath.
func (a *App) ExportZip(submissionID string, exclude subtree.Owner, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}
	defer f.Close()

	if _, err := a.service.ExportZip(submissionID, exclude, f); err != nil {
		os.Remove(outPath)
		return err
	}
	return nil
}

// DeleteSubmission removes a submission's records and blobs.
func (a *App) DeleteSubmission(submissionID string) error {
	return a.service.DeleteSubmission(submissionID)
}

// Close closes the store and the log file.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing tree store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
