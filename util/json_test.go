// util/json_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"slices"
	"strings"
	"testing"
)

func TestFindDuplicateJSONKeys(t *testing.T) {
	tests := []struct {
		json     string
		expected []string
	}{
		{`{"category": "visible", "earth": "wgs84"}`, nil},
		{`{"category": "visible", "earth": "wgs84", "category": "ir"}`, []string{"category"}},
		{`{"projection": {"resolution": 512, "resolution": 1024}}`, []string{"projection.resolution"}},
		{`{"a": 1, "a": {"b": [1, 2], "b": null}, "c": {"d": {"e": true, "e": false}}}`,
			[]string{"a", "a.b", "c.d.e"}},
		{`{"tracks": [{"id": 1}, {"id": 2}]}`, nil},
		{`{"tracks": [{"id": 1, "id": 2}, [{"x": 0, "x": 1}]]}`, []string{"tracks.id", "tracks.x"}},
		{`[{"k": 1, "k": 2}, "s", 3]`, []string{"k"}},
		{`{"a": 1, "a": 2, "b": `, []string{"a"}},
		{`"scalar"`, nil},
		{``, nil},
	}

	for _, test := range tests {
		var got []string
		for _, d := range FindDuplicateJSONKeys([]byte(test.json)) {
			got = append(got, d.String())
		}
		if !slices.Equal(got, test.expected) {
			t.Errorf("%s: got %v, expected %v", test.json, got, test.expected)
		}
	}
}

func TestCheckDuplicateJSONKeys(t *testing.T) {
	var e ErrorLogger
	e.Push("skycam.json")
	CheckDuplicateJSONKeys([]byte(`{"camera": {"latitude": 1, "latitude": 2}}`), &e)
	e.Pop()

	if !e.HaveErrors() || !strings.Contains(e.String(), "skycam.json: camera.latitude") {
		t.Errorf("got %q", e.String())
	}
}
