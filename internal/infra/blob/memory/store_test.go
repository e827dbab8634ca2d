package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"echocore/internal/blob/core"
)

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	store := New()
	if store.Driver() != core.DriverMemory {
		t.Fatalf("driver = %q", store.Driver())
	}
	info, err := store.Put(ctx, "surveys/a.xml", bytes.NewReader([]byte("<platesurvey/>")), core.PutOptions{ContentType: core.ContentTypeXML})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 14 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "surveys/a.xml", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate put to fail")
	}
	got, rc, err := store.Get(ctx, "surveys/a.xml")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "<platesurvey/>" || got.ETag != info.ETag {
		t.Fatalf("get mismatch: %q %+v", b, got)
	}
	if _, err := store.Head(ctx, "surveys/a.xml"); err != nil {
		t.Fatalf("head: %v", err)
	}
	ok, err := store.Delete(ctx, "surveys/a.xml")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "surveys/a.xml")
	if err != nil || ok {
		t.Fatalf("delete of missing key should report false")
	}
}

func TestMissingKey(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, _, err := store.Get(ctx, "nope"); err == nil {
		t.Fatalf("expected get error")
	}
	if _, err := store.Head(ctx, "nope"); err == nil {
		t.Fatalf("expected head error")
	}
}

func TestListPrefixOrder(t *testing.T) {
	ctx := context.Background()
	store := New()
	for _, key := range []string{"exports/2.csv", "exports/1.csv", "surveys/a.xml"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte(key)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := store.List(ctx, "exports/")
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %v %+v", err, list)
	}
	if list[0].Key != "exports/1.csv" || list[1].Key != "exports/2.csv" {
		t.Fatalf("expected sorted keys: %+v", list)
	}
	all, err := store.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("list all: %v %+v", err, all)
	}
}

func TestGetCopiesData(t *testing.T) {
	ctx := context.Background()
	store := New()
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("abc")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	b[0] = 'X'
	_, rc2, _ := store.Get(ctx, "k")
	b2, _ := io.ReadAll(rc2)
	_ = rc2.Close()
	if string(b2) != "abc" {
		t.Fatalf("stored data mutated: %q", b2)
	}
}

func TestMetadataIsolated(t *testing.T) {
	ctx := context.Background()
	store := New()
	md := map[string]string{"plate": "384PP"}
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("x")), core.PutOptions{Metadata: md}); err != nil {
		t.Fatalf("put: %v", err)
	}
	md["plate"] = "mutated"
	info, err := store.Head(ctx, "k")
	if err != nil || info.Metadata["plate"] != "384PP" {
		t.Fatalf("metadata not isolated: %v %+v", err, info.Metadata)
	}
	info.Metadata["plate"] = "again"
	info2, _ := store.Head(ctx, "k")
	if info2.Metadata["plate"] != "384PP" {
		t.Fatalf("head result not isolated: %+v", info2.Metadata)
	}
}

func TestPresignUnsupported(t *testing.T) {
	if _, err := New().PresignURL(context.Background(), "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
