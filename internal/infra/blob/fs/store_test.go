package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"echocore/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestPutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	payload := []byte("<platesurvey/>")
	info, err := store.Put(ctx, "surveys/raw/a.xml", bytes.NewReader(payload), core.PutOptions{ContentType: core.ContentTypeXML, Metadata: map[string]string{"plate": "384PP"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "surveys/raw/a.xml" || info.Size != int64(len(payload)) || info.ContentType != core.ContentTypeXML {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.ETag == "" {
		t.Fatalf("expected etag")
	}
	if _, err := store.Put(ctx, "surveys/raw/a.xml", bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate put to fail")
	}
	h, err := store.Head(ctx, "surveys/raw/a.xml")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	g, rc, err := store.Get(ctx, "surveys/raw/a.xml")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(b, payload) || g.ETag != h.ETag {
		t.Fatalf("get mismatch: %q etag %q vs %q", b, g.ETag, h.ETag)
	}
	if g.Metadata["plate"] != "384PP" {
		t.Fatalf("metadata lost: %+v", g.Metadata)
	}
	list, err := store.List(ctx, "surveys/")
	if err != nil || len(list) != 1 || list[0].Key != "surveys/raw/a.xml" {
		t.Fatalf("list: %v %+v", err, list)
	}
	ok, err := store.Delete(ctx, "surveys/raw/a.xml")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "surveys/raw/a.xml")
	if err != nil || ok {
		t.Fatalf("second delete should report missing: %v %v", ok, err)
	}
}

func TestKeySanitization(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"", "  ", "../escape.xml", "/abs.xml", "a/../../b.xml"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
			t.Fatalf("expected rejection for key %q", key)
		}
	}
}

func TestSidecarPersistence(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "exports/run.csv", bytes.NewReader([]byte("row,column\n")), core.PutOptions{ContentType: core.ContentTypeCSV}); err != nil {
		t.Fatalf("put: %v", err)
	}
	dataPath, metaPath, err := store.pathFor("exports/run.csv")
	if err != nil {
		t.Fatalf("pathFor: %v", err)
	}
	if _, err := os.Stat(dataPath); err != nil {
		t.Fatalf("data file missing: %v", err)
	}
	b, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	if !bytes.Contains(b, []byte(core.ContentTypeCSV)) {
		t.Fatalf("sidecar missing content type: %s", b)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestPutReaderFailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "bad.bin", failingReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected copy error")
	}
	if _, err := store.Head(ctx, "bad.bin"); err == nil {
		t.Fatalf("expected no sidecar after failed put")
	}
}

func TestGetMissingSidecar(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "k.xml", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, metaPath, _ := store.pathFor("k.xml")
	if err := os.Remove(metaPath); err != nil {
		t.Fatalf("rm sidecar: %v", err)
	}
	if _, _, err := store.Get(ctx, "k.xml"); err == nil {
		t.Fatalf("expected get error without sidecar")
	}
	if _, err := store.Head(ctx, "k.xml"); err == nil {
		t.Fatalf("expected head error without sidecar")
	}
}

func TestListCorruptSidecar(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.xml"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.xml.meta"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
	if _, err := store.List(context.Background(), ""); err == nil {
		t.Fatalf("expected list error on corrupt sidecar")
	}
}

func TestListOrderAndPrefix(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"b/2.xml", "a/1.xml", "a/0.xml"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte(key)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "a/")
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %v %+v", err, list)
	}
	if list[0].Key != "a/0.xml" || list[1].Key != "a/1.xml" {
		t.Fatalf("expected sorted keys: %+v", list)
	}
}

func TestPresignURL(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	url, err := store.PresignURL(ctx, "some/key.xml", core.SignedURLOptions{Method: "get"})
	if err != nil || url != "http://blob.localhost/some/key.xml" {
		t.Fatalf("presign: %v %s", err, url)
	}
	if _, err := store.PresignURL(ctx, "some/key.xml", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for PUT, got %v", err)
	}
}

func TestNewRejectsFileRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "afile")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(file); err == nil {
		t.Fatalf("expected error when root is a regular file")
	}
}

func TestDriver(t *testing.T) {
	if d := newTempStore(t).Driver(); d != core.DriverFilesystem {
		t.Fatalf("driver = %q", d)
	}
}
