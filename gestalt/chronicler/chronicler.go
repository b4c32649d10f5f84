// Package chronicler stores gestalt objects as a tree of JSON files.
//
// Each path segment is a directory except the last, which becomes a .json
// file. The layout is deliberately human-editable; operators can inspect
// and fix bot state with a text editor while the process is stopped.
package chronicler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/aigachu/lavenza/gestalt"
)

// Chronicler is a JSON-file StorageService rooted at one directory.
type Chronicler struct {
	root string
}

var _ gestalt.StorageService = (*Chronicler)(nil)

// New returns a chronicler rooted at dir, creating it if needed.
func New(dir string) (*Chronicler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("couldn't create chronicler root: %w", err)
	}
	return &Chronicler{root: dir}, nil
}

// file maps a gestalt path to its file on disk, rejecting paths that would
// escape the root.
func (c *Chronicler) file(path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", errors.New("chronicler: empty path")
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("chronicler: bad path %q", path)
		}
	}
	return filepath.Join(c.root, filepath.FromSlash(path)+".json"), nil
}

// Get implements gestalt.StorageService.
func (c *Chronicler) Get(ctx context.Context, path string) (gestalt.Object, error) {
	name, err := c.file(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("couldn't read %s: %w", path, err)
	}
	var obj gestalt.Object
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, fmt.Errorf("couldn't decode %s: %w", path, err)
	}
	return obj, nil
}

// Post implements gestalt.StorageService. The write goes through a sibling
// temp file and a rename so a crash never leaves a half-written object.
func (c *Chronicler) Post(ctx context.Context, path string, payload gestalt.Object) error {
	name, err := c.file(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("couldn't create collection for %s: %w", path, err)
	}
	b, err := json.Marshal(payload, jsontext.WithIndent("\t"))
	if err != nil {
		return fmt.Errorf("couldn't encode %s: %w", path, err)
	}
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("couldn't write %s: %w", path, err)
	}
	if err := os.Rename(tmp, name); err != nil {
		return fmt.Errorf("couldn't commit %s: %w", path, err)
	}
	return nil
}

// Delete implements gestalt.StorageService.
func (c *Chronicler) Delete(ctx context.Context, path string) error {
	name, err := c.file(path)
	if err != nil {
		return err
	}
	err = os.Remove(name)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("couldn't delete %s: %w", path, err)
	}
	return nil
}
