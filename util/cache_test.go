// util/cache_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

type testObject struct {
	Name   string
	Values []float32
}

func TestStoreRetrieveObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "obj.msgpack.zst")
	obj := testObject{Name: "grid", Values: []float32{1, 2.5, -3}}

	if err := StoreObject(path, obj); err != nil {
		t.Fatalf("StoreObject: %v", err)
	}

	var got testObject
	mod, err := RetrieveObject(path, &got)
	if err != nil {
		t.Fatalf("RetrieveObject: %v", err)
	}
	if mod.IsZero() {
		t.Errorf("expected a modification time")
	}
	if got.Name != obj.Name || !slices.Equal(got.Values, obj.Values) {
		t.Errorf("got %+v, expected %+v", got, obj)
	}

	// No temporary files should be left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected a single file in cache dir, got %d", len(entries))
	}
}

func TestStoreObjectReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obj.msgpack.zst")
	for _, name := range []string{"first", "second"} {
		if err := StoreObject(path, testObject{Name: name}); err != nil {
			t.Fatalf("StoreObject: %v", err)
		}
	}

	var got testObject
	if _, err := RetrieveObject(path, &got); err != nil {
		t.Fatalf("RetrieveObject: %v", err)
	}
	if got.Name != "second" {
		t.Errorf("got %q, expected last writer to win", got.Name)
	}
}

func TestRetrieveObjectCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obj.msgpack.zst")
	if err := os.WriteFile(path, []byte("not zstd at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	var got testObject
	if _, err := RetrieveObject(path, &got); err == nil {
		t.Errorf("expected an error decoding a corrupt file")
	}

	if _, err := RetrieveObject(filepath.Join(t.TempDir(), "missing"), &got); !os.IsNotExist(err) {
		t.Errorf("got %v, expected a not-exist error", err)
	}
}
