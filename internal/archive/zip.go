package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"subtree-go/internal/subtree"
)

type zipArchive struct {
	rc  *zip.ReadCloser
	dec *Decoder
}

func (d *Decoder) openZip(path string) (subtree.Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		// Insecure member names still yield a readable archive; they are
		// rejected per member so the error carries the offending name.
		if !errors.Is(err, zip.ErrInsecurePath) {
			return nil, &subtree.UnrecognizedFormatError{Name: filepath.Base(path)}
		}
	}
	return &zipArchive{rc: rc, dec: d}, nil
}

func (a *zipArchive) Close() error { return a.rc.Close() }

func (a *zipArchive) Members() ([]string, error) {
	names := make([]string, 0, len(a.rc.File))
	for _, f := range a.rc.File {
		names = append(names, f.Name)
	}
	return names, nil
}

func (a *zipArchive) Extract(dir string, maxSize int64) (int64, error) {
	if len(a.rc.File) > maxMembers {
		return 0, &subtree.UnsafeArchiveError{Reason: fmt.Sprintf("archive has %d members", len(a.rc.File))}
	}

	budget := &sizeBudget{perFile: a.dec.maxFileSize, maxSize: maxSize}
	for _, f := range a.rc.File {
		if err := extractZipMember(f, dir, budget); err != nil {
			return budget.total, err
		}
	}
	return budget.total, nil
}

func extractZipMember(f *zip.File, dir string, budget *sizeBudget) error {
	mode := f.Mode()
	if mode&os.ModeSymlink != 0 {
		return &subtree.UnsafeArchiveError{Reason: fmt.Sprintf("member %q is a symlink", f.Name)}
	}

	out, err := memberPath(dir, f.Name)
	if err != nil || out == "" {
		return err
	}

	if strings.HasSuffix(f.Name, "/") || mode.IsDir() {
		if err := os.MkdirAll(out, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", f.Name, err)
		}
		return nil
	}
	if !mode.IsRegular() {
		return &subtree.UnsafeArchiveError{Reason: fmt.Sprintf("member %q is not a regular file", f.Name)}
	}

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening member %s: %w", f.Name, err)
	}
	defer src.Close()

	// The zip directory's size field is attacker-controlled; count the
	// bytes actually inflated instead of trusting it.
	n, err := writeCapped(out, src, budget.perFile)
	if err != nil {
		return fmt.Errorf("extracting member %s: %w", f.Name, err)
	}
	return budget.charge(f.Name, n)
}

// writeCapped copies src to a new file at path, reading at most cap+1
// bytes so a decompression bomb stops inflating at the quota instead of
// filling the disk. The returned count may therefore be cap+1, which the
// budget reports as over the limit.
func writeCapped(path string, src io.Reader, cap int64) (int64, error) {
	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, io.LimitReader(src, cap+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return n, err
}
