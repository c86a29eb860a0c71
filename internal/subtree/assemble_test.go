package subtree_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"subtree-go/internal/archive"
	"subtree-go/internal/blob"
	"subtree-go/internal/ignore"
	"subtree-go/internal/subtree"
	"subtree-go/internal/testutil"
)

// newTestService wires a Service against in-memory collaborators.
func newTestService(t *testing.T, maxFileSize int64) (*subtree.Service, *blob.MemoryStore, *testutil.CaptureLogger) {
	t.Helper()

	store := testutil.NewTestStore(t, testutil.FixedClock(), nil)
	blobs := blob.NewMemoryStore()
	logger := testutil.NewCaptureLogger()

	svc := subtree.NewService(
		store,
		blobs,
		archive.NewDecoder(maxFileSize),
		subtree.NewReservedNames(subtree.DefaultReservedNames),
		logger,
		testutil.FixedClock(),
		subtree.UUIDGenerator{},
		maxFileSize,
	)
	return svc, blobs, logger
}

// makeZip builds an in-memory zip whose members are given as name=content
// pairs. Names with a trailing slash become directory entries.
func makeZip(t *testing.T, members map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range members {
		if strings.HasSuffix(name, "/") {
			if _, err := zw.Create(name); err != nil {
				t.Fatalf("creating zip dir %s: %v", name, err)
			}
			continue
		}
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating zip member %s: %v", name, err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatalf("writing zip member %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func upload(name, content string) subtree.Upload {
	return subtree.Upload{Name: name, Content: strings.NewReader(content)}
}

func defaultOpts() subtree.IngestOptions {
	return subtree.IngestOptions{MaxSize: 1 << 20}
}

// leafNames collects the logical names of all leaves.
func leafNames(d *subtree.Dir) []string {
	var names []string
	for _, l := range d.Leaves() {
		names = append(names, l.Name)
	}
	return names
}

func TestService_Ingest_PlainFiles(t *testing.T) {
	t.Run("single plain file sits under top", func(t *testing.T) {
		svc, blobs, _ := newTestService(t, 1<<20)

		tree, warnings, err := svc.Ingest([]subtree.Upload{upload("hello.txt", "hi there")}, defaultOpts())
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if len(warnings) != 0 {
			t.Errorf("warnings = %v, want none", warnings)
		}
		if tree.Name != "top" {
			t.Errorf("root name = %q, want top", tree.Name)
		}
		if tree.Size != int64(len("hi there")) {
			t.Errorf("tree size = %d, want %d", tree.Size, len("hi there"))
		}

		leaves := tree.Leaves()
		if len(leaves) != 1 || leaves[0].Name != "hello.txt" {
			t.Fatalf("leaves = %v, want [hello.txt]", leafNames(&tree.Dir))
		}

		rc, err := blobs.Open(leaves[0].DiskName)
		if err != nil {
			t.Fatalf("opening stored blob: %v", err)
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if string(data) != "hi there" {
			t.Errorf("stored content = %q, want %q", data, "hi there")
		}
	})

	t.Run("multiple plain files union under top", func(t *testing.T) {
		svc, _, _ := newTestService(t, 1<<20)

		tree, _, err := svc.Ingest([]subtree.Upload{
			upload("a.txt", "aaa"),
			upload("b.txt", "bb"),
		}, defaultOpts())
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if tree.Name != "top" {
			t.Errorf("root name = %q, want top", tree.Name)
		}
		if len(tree.Entries) != 2 {
			t.Errorf("entries = %d, want 2", len(tree.Entries))
		}
		if tree.Size != 5 {
			t.Errorf("tree size = %d, want 5", tree.Size)
		}
	})

	t.Run("no uploads is an error", func(t *testing.T) {
		svc, _, _ := newTestService(t, 1<<20)
		if _, _, err := svc.Ingest(nil, defaultOpts()); err == nil {
			t.Fatal("Ingest() expected error for empty batch")
		}
	})
}

func TestService_Ingest_Archives(t *testing.T) {
	t.Run("single top directory names the root", func(t *testing.T) {
		svc, _, _ := newTestService(t, 1<<20)

		data := makeZip(t, map[string]string{
			"proj/main.go":   "package main",
			"proj/go.mod":    "module proj",
			"proj/sub/a.txt": "a",
		})
		tree, _, err := svc.Ingest([]subtree.Upload{
			{Name: "upload.zip", Content: bytes.NewReader(data)},
		}, defaultOpts())
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		if tree.Name != "proj" {
			t.Errorf("root name = %q, want proj", tree.Name)
		}
		if got := len(tree.Leaves()); got != 3 {
			t.Errorf("leaf count = %d, want 3", got)
		}
	})

	t.Run("flat archive takes the archive's base name", func(t *testing.T) {
		svc, _, _ := newTestService(t, 1<<20)

		data := makeZip(t, map[string]string{
			"a.txt": "a",
			"b.txt": "b",
		})
		tree, _, err := svc.Ingest([]subtree.Upload{
			{Name: "work.tar.zip", Content: bytes.NewReader(data)},
		}, defaultOpts())
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if tree.Name != "work" {
			t.Errorf("root name = %q, want work", tree.Name)
		}
	})

	t.Run("archive alongside plain file goes under top", func(t *testing.T) {
		svc, _, _ := newTestService(t, 1<<20)

		data := makeZip(t, map[string]string{"inner/x.txt": "x"})
		tree, _, err := svc.Ingest([]subtree.Upload{
			{Name: "code.zip", Content: bytes.NewReader(data)},
			upload("README.md", "hello"),
		}, defaultOpts())
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if tree.Name != "top" {
			t.Errorf("root name = %q, want top", tree.Name)
		}
		if len(tree.Entries) != 2 {
			t.Errorf("entries = %d, want 2", len(tree.Entries))
		}
	})

	t.Run("force plain stores the archive bytes untouched", func(t *testing.T) {
		svc, _, _ := newTestService(t, 1<<20)

		data := makeZip(t, map[string]string{"a.txt": "a"})
		opts := defaultOpts()
		opts.ForcePlain = true
		tree, _, err := svc.Ingest([]subtree.Upload{
			{Name: "code.zip", Content: bytes.NewReader(data)},
		}, opts)
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		leaves := tree.Leaves()
		if len(leaves) != 1 || leaves[0].Name != "code.zip" {
			t.Fatalf("leaves = %v, want the zip as a single file", leafNames(&tree.Dir))
		}
	})

	t.Run("garbage with archive suffix is unrecognized", func(t *testing.T) {
		svc, blobs, _ := newTestService(t, 1<<20)

		_, _, err := svc.Ingest([]subtree.Upload{
			upload("broken.zip", "this is not a zip at all"),
		}, defaultOpts())

		var unrec *subtree.UnrecognizedFormatError
		if !errors.As(err, &unrec) {
			t.Fatalf("Ingest() error = %v, want UnrecognizedFormatError", err)
		}
		if unrec.Name != "broken.zip" {
			t.Errorf("error name = %q, want broken.zip", unrec.Name)
		}
		if blobs.Len() != 0 {
			t.Errorf("blob count = %d, want 0", blobs.Len())
		}
	})

	t.Run("archive of only directories has no files", func(t *testing.T) {
		svc, _, _ := newTestService(t, 1<<20)

		data := makeZip(t, map[string]string{"a/": "", "a/b/": ""})
		_, _, err := svc.Ingest([]subtree.Upload{
			{Name: "dirs.zip", Content: bytes.NewReader(data)},
		}, defaultOpts())

		var nf *subtree.NoFilesError
		if !errors.As(err, &nf) {
			t.Fatalf("Ingest() error = %v, want NoFilesError", err)
		}
		if nf.AllFiltered {
			t.Error("AllFiltered = true, want false without ignore rules")
		}
	})
}

func TestService_Ingest_Quotas(t *testing.T) {
	t.Run("total quota failure sweeps stored blobs", func(t *testing.T) {
		svc, blobs, _ := newTestService(t, 1<<20)

		opts := defaultOpts()
		opts.MaxSize = 10
		_, _, err := svc.Ingest([]subtree.Upload{
			upload("a.txt", "12345678"),
			upload("b.txt", "87654321"),
		}, opts)

		var tooLarge *subtree.TooLargeError
		if !errors.As(err, &tooLarge) {
			t.Fatalf("Ingest() error = %v, want TooLargeError", err)
		}
		if tooLarge.SingleFile {
			t.Error("SingleFile = true, want aggregate quota")
		}
		if blobs.Len() != 0 {
			t.Errorf("blob count after failure = %d, want 0 (swept)", blobs.Len())
		}
	})

	t.Run("per-file cap failure names the file", func(t *testing.T) {
		svc, blobs, _ := newTestService(t, 4)

		_, _, err := svc.Ingest([]subtree.Upload{
			upload("big.bin", "way too much content"),
		}, defaultOpts())

		var tooLarge *subtree.TooLargeError
		if !errors.As(err, &tooLarge) {
			t.Fatalf("Ingest() error = %v, want TooLargeError", err)
		}
		if !tooLarge.SingleFile || tooLarge.Name != "big.bin" {
			t.Errorf("TooLargeError = %+v, want single-file for big.bin", tooLarge)
		}
		if blobs.Len() != 0 {
			t.Errorf("blob count after failure = %d, want 0 (swept)", blobs.Len())
		}
	})

	t.Run("archive decoded size counts against the quota", func(t *testing.T) {
		svc, _, _ := newTestService(t, 1<<20)

		data := makeZip(t, map[string]string{
			"proj/a.bin": strings.Repeat("x", 600),
			"proj/b.bin": strings.Repeat("y", 600),
		})
		opts := defaultOpts()
		opts.MaxSize = 1000
		_, _, err := svc.Ingest([]subtree.Upload{
			{Name: "big.zip", Content: bytes.NewReader(data)},
		}, opts)

		var tooLarge *subtree.TooLargeError
		if !errors.As(err, &tooLarge) {
			t.Fatalf("Ingest() error = %v, want TooLargeError", err)
		}
	})
}

func TestService_Ingest_IgnorePolicies(t *testing.T) {
	newFilter := func(t *testing.T, lines ...string) subtree.IgnoreFilter {
		t.Helper()
		f, err := ignore.New(lines)
		if err != nil {
			t.Fatalf("building filter: %v", err)
		}
		return f
	}

	t.Run("policy error rejects matching members", func(t *testing.T) {
		svc, _, _ := newTestService(t, 1<<20)

		data := makeZip(t, map[string]string{
			"proj/main.go":  "package main",
			"proj/out.log":  "noise",
			"proj/main.bin": "binary",
		})
		opts := defaultOpts()
		opts.Policy = subtree.PolicyError
		opts.Filter = newFilter(t, "*.log", "*.bin")

		_, _, err := svc.Ingest([]subtree.Upload{
			{Name: "proj.zip", Content: bytes.NewReader(data)},
		}, opts)

		var ignored *subtree.IgnoredFilesError
		if !errors.As(err, &ignored) {
			t.Fatalf("Ingest() error = %v, want IgnoredFilesError", err)
		}
		if len(ignored.Files) != 2 {
			t.Errorf("ignored files = %d, want 2", len(ignored.Files))
		}
	})

	t.Run("policy delete drops matching files", func(t *testing.T) {
		svc, _, _ := newTestService(t, 1<<20)

		data := makeZip(t, map[string]string{
			"proj/main.go": "package main",
			"proj/out.log": "noise",
		})
		opts := defaultOpts()
		opts.Policy = subtree.PolicyDelete
		opts.Filter = newFilter(t, "*.log")

		tree, _, err := svc.Ingest([]subtree.Upload{
			{Name: "proj.zip", Content: bytes.NewReader(data)},
		}, opts)
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}

		names := leafNames(&tree.Dir)
		if len(names) != 1 || names[0] != "main.go" {
			t.Errorf("leaves = %v, want [main.go]", names)
		}
	})

	t.Run("deleting every file reports all-filtered", func(t *testing.T) {
		svc, _, _ := newTestService(t, 1<<20)

		opts := defaultOpts()
		opts.Policy = subtree.PolicyDelete
		opts.Filter = newFilter(t, "*.log")

		_, _, err := svc.Ingest([]subtree.Upload{
			upload("a.log", "noise"),
		}, opts)

		var nf *subtree.NoFilesError
		if !errors.As(err, &nf) {
			t.Fatalf("Ingest() error = %v, want NoFilesError", err)
		}
		if !nf.AllFiltered {
			t.Error("AllFiltered = false, want true under PolicyDelete")
		}
	})

	t.Run("policy without filter is rejected", func(t *testing.T) {
		svc, _, _ := newTestService(t, 1<<20)

		opts := defaultOpts()
		opts.Policy = subtree.PolicyError
		if _, _, err := svc.Ingest([]subtree.Upload{upload("a.txt", "a")}, opts); err == nil {
			t.Fatal("Ingest() expected error for policy without filter")
		}
	})
}

func TestService_Ingest_ReservedNames(t *testing.T) {
	svc, _, _ := newTestService(t, 1<<20)

	tree, warnings, err := svc.Ingest([]subtree.Upload{
		upload(".cg-grade", "tampered"),
		upload("ok.txt", "fine"),
	}, defaultOpts())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	names := leafNames(&tree.Dir)
	for _, n := range names {
		if n == ".cg-grade" {
			t.Errorf("reserved name survived unescaped: %v", names)
		}
	}
	found := false
	for _, n := range names {
		if n == ".cg-grade"+subtree.EscapeMarker {
			found = true
		}
	}
	if !found {
		t.Errorf("escaped name missing from %v", names)
	}
	if len(warnings) == 0 {
		t.Error("expected a rename warning")
	}
}
