package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourorg/cadvault/internal/domain"
	"github.com/yourorg/cadvault/pkg/cache"
)

const tinyDrawing = `0
SECTION
2
ENTITIES
0
CIRCLE
8
0
10
1.0
20
2.0
40
5.0
0
ENDSEC
`

func newFileService(t *testing.T) (*FileService, string) {
	t.Helper()
	root := t.TempDir()
	svc := NewFileService(root, NewMemoryResultCache(cache.New()), nil)
	if err := os.Mkdir(filepath.Join(root, "alice"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return svc, root
}

func TestSaveUploadRejectsTraversal(t *testing.T) {
	svc, _ := newFileService(t)
	ctx := context.Background()

	bad := []string{"../../etc/passwd.dxf", "a/b.dxf", `a\b.dxf`, "..dxf"}
	for _, name := range bad {
		_, err := svc.SaveUpload(ctx, "alice@example.com", name, strings.NewReader("x"))
		var vErr *domain.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("%q: expected ValidationError, got %v", name, err)
		}
	}
}

func TestSaveUploadRejectsNonDXF(t *testing.T) {
	svc, _ := newFileService(t)

	_, err := svc.SaveUpload(context.Background(), "alice@example.com", "notes.txt", strings.NewReader("x"))
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSaveUploadStoresFileWithoutStagingLeftovers(t *testing.T) {
	svc, root := newFileService(t)

	path, err := svc.SaveUpload(context.Background(), "alice@example.com", "plan.DXF", strings.NewReader(tinyDrawing))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != tinyDrawing {
		t.Fatalf("stored content mismatch: %v", err)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "alice"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".upload-") {
			t.Fatalf("staging file left behind: %s", e.Name())
		}
	}
}

func TestSaveUploadUnknownUserFolder(t *testing.T) {
	svc, _ := newFileService(t)

	_, err := svc.SaveUpload(context.Background(), "nobody@example.com", "plan.dxf", strings.NewReader("x"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFilesSkipsDirectories(t *testing.T) {
	svc, root := newFileService(t)
	if err := os.WriteFile(filepath.Join(root, "alice", "a.dxf"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "alice", "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	files, err := svc.ListFiles("alice@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 || files[0].Name != "a.dxf" {
		t.Fatalf("unexpected listing: %+v", files)
	}
}

func TestFolderTreeListsOnlyDrawings(t *testing.T) {
	svc, root := newFileService(t)
	base := filepath.Join(root, "alice")
	if err := os.MkdirAll(filepath.Join(base, "project", "rev2"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	os.WriteFile(filepath.Join(base, "top.dxf"), []byte("1"), 0o644)
	os.WriteFile(filepath.Join(base, "readme.txt"), []byte("2"), 0o644)
	os.WriteFile(filepath.Join(base, "project", "rev2", "deep.dxf"), []byte("3"), 0o644)

	tree, err := svc.FolderTree("alice@example.com")
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if len(tree.Files) != 1 || tree.Files[0].Name != "top.dxf" {
		t.Fatalf("unexpected top-level files: %+v", tree.Files)
	}
	if len(tree.Folders) != 1 || tree.Folders[0].Name != "project" {
		t.Fatalf("unexpected top-level folders: %+v", tree.Folders)
	}
	sub := tree.Folders[0].SubStructure
	if len(sub.Folders) != 1 || len(sub.Folders[0].SubStructure.Files) != 1 {
		t.Fatalf("nested drawing not found")
	}
	if got := sub.Folders[0].SubStructure.Files[0].Path; got != filepath.Join("project", "rev2", "deep.dxf") {
		t.Fatalf("unexpected nested path %q", got)
	}
}

func TestTransferFilesCreatesSubFolder(t *testing.T) {
	svc, root := newFileService(t)

	err := svc.TransferFiles(context.Background(), "alice@example.com", "compare",
		"left.dxf", strings.NewReader("l"),
		"right.dxf", strings.NewReader("r"))
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	for _, name := range []string{"left.dxf", "right.dxf"} {
		if _, err := os.Stat(filepath.Join(root, "alice", "compare", name)); err != nil {
			t.Fatalf("%s missing: %v", name, err)
		}
	}
}

func TestExtractFromReaderCleansTempFile(t *testing.T) {
	svc, _ := newFileService(t)

	doc, err := svc.ExtractFromReader(context.Background(), "plan.dxf", strings.NewReader(tinyDrawing))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.Statistics.CircleCount != 1 {
		t.Fatalf("unexpected statistics: %+v", doc.Statistics)
	}

	// A decode failure must not leak the staging file either.
	if _, err := svc.ExtractFromReader(context.Background(), "bad.dxf", strings.NewReader("not a drawing")); err == nil {
		t.Fatalf("expected decode failure")
	}

	leftovers, _ := filepath.Glob(filepath.Join(os.TempDir(), "cadvault-*.dxf"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestExtractStoredUsesCache(t *testing.T) {
	svc, root := newFileService(t)
	path := filepath.Join(root, "alice", "plan.dxf")
	if err := os.WriteFile(path, []byte(tinyDrawing), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx := context.Background()
	doc, err := svc.ExtractStored(ctx, "alice@example.com", "", "plan.dxf")
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}
	if doc.Statistics.CircleCount != 1 {
		t.Fatalf("unexpected statistics: %+v", doc.Statistics)
	}

	// Corrupt the file but restore its mtime: a cache hit ignores content.
	info, _ := os.Stat(path)
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if err := os.Chtimes(path, info.ModTime(), info.ModTime()); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	doc, err = svc.ExtractStored(ctx, "alice@example.com", "", "plan.dxf")
	if err != nil {
		t.Fatalf("cached extract: %v", err)
	}
	if doc.Statistics.CircleCount != 1 {
		t.Fatalf("cache did not serve previous result: %+v", doc.Statistics)
	}
}

func TestExtractStoredMissingFile(t *testing.T) {
	svc, _ := newFileService(t)

	_, err := svc.ExtractStored(context.Background(), "alice@example.com", "", "absent.dxf")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExtractStoredFromSubFolder(t *testing.T) {
	svc, root := newFileService(t)
	sub := filepath.Join(root, "alice", "compare")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "plan.dxf"), []byte(tinyDrawing), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	doc, err := svc.ExtractStored(context.Background(), "alice@example.com", "compare", "plan.dxf")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.Statistics.TotalEntities != 1 {
		t.Fatalf("unexpected statistics: %+v", doc.Statistics)
	}
}
