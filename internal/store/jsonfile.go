// Package store holds the small JSON-file-backed persisted maps this
// backend keeps across restarts: account phase labels, VS group
// assignments, Versus hedge records, and the trade-history cursor cache.
// Each store guards its in-memory map with a mutex and writes through to
// disk synchronously on every mutation, matching the original's
// load-on-start/save-on-write design.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// loadJSON reads path into v, tolerating a missing file by leaving v
// untouched (the caller's zero value stands).
func loadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// saveJSON writes v to path as indented JSON, creating the parent
// directory if needed. Writes to a temp file first and renames over the
// target so a crash mid-write never corrupts the previous good copy.
func saveJSON(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func logOrNil(log zerolog.Logger, action, path string, err error) {
	if err != nil {
		log.Error().Err(err).Str("action", action).Str("path", path).Msg("store persistence failed")
	}
}
