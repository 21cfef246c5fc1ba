package results

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// Latest selects the most recently saved result set in Store.Load.
const Latest = "latest"

var ErrAlreadySaved = errors.New("result set already saved")

// Store persists result sets. Saving the same run twice is an error; a saved
// set is never modified.
type Store interface {
	Save(ctx context.Context, set *Set) error
	// Load returns the set with the given run id, or the latest one for "" or Latest.
	Load(ctx context.Context, id string) (*Set, error)
}

// Encode writes set as indented JSON.
func Encode(w io.Writer, set *Set) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(set); err != nil {
		return fmt.Errorf("encode result set: %w", err)
	}
	return nil
}

// Decode reads a set written by Encode.
func Decode(r io.Reader) (*Set, error) {
	var set Set
	if err := json.NewDecoder(r).Decode(&set); err != nil {
		return nil, fmt.Errorf("decode result set: %w", err)
	}
	return &set, nil
}

// FileStore keeps the most recent result set in one JSON file. A new run
// replaces the previous file.
type FileStore struct {
	Path string
}

func (f FileStore) Save(ctx context.Context, set *Set) error {
	if prev, err := f.Load(ctx, Latest); err == nil && prev.Run.ID == set.Run.ID {
		return fmt.Errorf("%w: run %s in %s", ErrAlreadySaved, set.Run.ID, f.Path)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, set); err != nil {
		return err
	}
	// write then rename so readers never observe a partial file
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".kerntune-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write result set: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close result set: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("rename result set: %w", err)
	}
	return nil
}

func (f FileStore) Load(_ context.Context, id string) (*Set, error) {
	file, err := os.Open(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, f.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open result set: %w", err)
	}
	defer func() { _ = file.Close() }()

	set, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	if id != "" && id != Latest && set.Run.ID != id {
		return nil, fmt.Errorf("%w: %s holds run %s, not %s", ErrNotFound, f.Path, set.Run.ID, id)
	}
	return set, nil
}
