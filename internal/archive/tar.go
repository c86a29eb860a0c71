package archive

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"subtree-go/internal/subtree"
)

type compression int

const (
	compressNone compression = iota
	compressGzip
	compressBzip2
)

// tarArchive re-opens the file for every pass, since tar streams cannot
// seek backwards; Members and Extract are separate passes.
type tarArchive struct {
	path     string
	compress compression
	dec      *Decoder
}

func (d *Decoder) openTar(path string, c compression) (subtree.Archive, error) {
	a := &tarArchive{path: path, compress: c, dec: d}

	// Validate by reading the first header so that arbitrary binaries are
	// rejected here and not halfway through extraction.
	tr, closer, err := a.open()
	if err != nil {
		return nil, err
	}
	defer closer()
	if _, err := tr.Next(); err != nil && !errors.Is(err, tar.ErrInsecurePath) {
		return nil, &subtree.UnrecognizedFormatError{Name: filepath.Base(path)}
	}
	return a, nil
}

func (a *tarArchive) Close() error { return nil }

func (a *tarArchive) open() (*tar.Reader, func() error, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}

	var r io.Reader = f
	switch a.compress {
	case compressGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, &subtree.UnrecognizedFormatError{Name: filepath.Base(a.path)}
		}
		r = gz
	case compressBzip2:
		r = bzip2.NewReader(f)
	}
	return tar.NewReader(r), f.Close, nil
}

func (a *tarArchive) Members() ([]string, error) {
	tr, closer, err := a.open()
	if err != nil {
		return nil, err
	}
	defer closer()

	var names []string
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return nil, fmt.Errorf("reading archive member list: %w", err)
		}
		names = append(names, hdr.Name)
		if len(names) > maxMembers {
			return nil, &subtree.UnsafeArchiveError{Reason: fmt.Sprintf("archive has more than %d members", maxMembers)}
		}
	}
}

func (a *tarArchive) Extract(dir string, maxSize int64) (int64, error) {
	tr, closer, err := a.open()
	if err != nil {
		return 0, err
	}
	defer closer()

	budget := &sizeBudget{perFile: a.dec.maxFileSize, maxSize: maxSize}
	members := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return budget.total, nil
		}
		// Headers with traversal names still arrive intact; memberPath
		// rejects them with the offending name.
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return budget.total, fmt.Errorf("reading archive: %w", err)
		}

		members++
		if members > maxMembers {
			return budget.total, &subtree.UnsafeArchiveError{Reason: fmt.Sprintf("archive has more than %d members", maxMembers)}
		}
		if err := extractTarMember(hdr, tr, dir, budget); err != nil {
			return budget.total, err
		}
	}
}

func extractTarMember(hdr *tar.Header, tr *tar.Reader, dir string, budget *sizeBudget) error {
	switch hdr.Typeflag {
	case tar.TypeDir, tar.TypeReg:
	case tar.TypeSymlink, tar.TypeLink:
		return &subtree.UnsafeArchiveError{Reason: fmt.Sprintf("member %q is a link", hdr.Name)}
	case tar.TypeXGlobalHeader, tar.TypeXHeader:
		return nil
	default:
		return &subtree.UnsafeArchiveError{Reason: fmt.Sprintf("member %q is not a regular file", hdr.Name)}
	}

	out, err := memberPath(dir, hdr.Name)
	if err != nil || out == "" {
		return err
	}

	if hdr.Typeflag == tar.TypeDir {
		if err := os.MkdirAll(out, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", hdr.Name, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", hdr.Name, err)
	}

	// Count the bytes actually read: the header size field is
	// attacker-controlled and gzip hides the true length anyway.
	n, err := writeCapped(out, tr, budget.perFile)
	if err != nil {
		return fmt.Errorf("extracting member %s: %w", hdr.Name, err)
	}
	return budget.charge(hdr.Name, n)
}
