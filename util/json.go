// util/json.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DuplicateJSONKey records an object key that appears more than once.
type DuplicateJSONKey struct {
	Path string // path to the enclosing object, e.g. "projection"
	Key  string
}

func (d DuplicateJSONKey) String() string {
	if d.Path == "" {
		return d.Key
	}
	return d.Path + "." + d.Key
}

// FindDuplicateJSONKeys returns the keys that are repeated within an
// object anywhere in data; encoding/json silently keeps the last value
// for them. Array elements don't add to the path. Scanning stops at the
// first syntax error.
func FindDuplicateJSONKeys(data []byte) []DuplicateJSONKey {
	dec := json.NewDecoder(bytes.NewReader(data))
	var dups []DuplicateJSONKey

	var value func(path []string) error
	value = func(path []string) error {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		delim, ok := tok.(json.Delim)
		if !ok {
			return nil
		}

		if delim == '{' {
			seen := make(map[string]bool)
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return err
				}
				key, _ := kt.(string)
				if seen[key] {
					dups = append(dups, DuplicateJSONKey{Path: strings.Join(path, "."), Key: key})
				}
				seen[key] = true
				if err := value(append(path, key)); err != nil {
					return err
				}
			}
		} else {
			for dec.More() {
				if err := value(path); err != nil {
					return err
				}
			}
		}

		// Closing delimiter
		_, err = dec.Token()
		return err
	}

	value(nil)
	return dups
}

// CheckDuplicateJSONKeys reports each duplicate key in data to e.
func CheckDuplicateJSONKeys(data []byte, e *ErrorLogger) {
	for _, d := range FindDuplicateJSONKeys(data) {
		e.ErrorString("%s: key given more than once", d)
	}
}
