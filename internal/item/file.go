package item

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk YAML layout of a knowledge base.
type fileFormat struct {
	Collection string `yaml:"collection,omitempty"`
	Items      []Item `yaml:"items"`
}

// IsSQLitePath reports whether path names a SQLite knowledge base.
func IsSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// Load opens the knowledge base at path. YAML files (.yaml, .yml) and
// SQLite databases (.db, .sqlite, .sqlite3) are supported.
func Load(ctx context.Context, path string) (*Memory, error) {
	if IsSQLitePath(path) {
		s, err := OpenSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = s.Close() }()
		return s.Load(ctx)
	}
	return LoadFile(path)
}

// Save writes m to the knowledge base at path and marks m saved.
func Save(ctx context.Context, path string, m *Memory) error {
	if IsSQLitePath(path) {
		s, err := OpenSQLiteStore(path)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		if err := s.Save(ctx, m); err != nil {
			return err
		}
	} else if err := WriteFile(path, m); err != nil {
		return err
	}
	m.MarkSaved()
	return nil
}

// LoadFile reads a YAML knowledge base. When the file does not name its
// collection, the absolute path is used as the collection ID.
func LoadFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base %s: %w", path, err)
	}

	var parsed fileFormat
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base %s: %w", path, err)
	}

	seen := make(map[ID]struct{}, len(parsed.Items))
	for i, it := range parsed.Items {
		if it.ID == "" {
			return nil, fmt.Errorf("knowledge base %s: item %d has no id", path, i)
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("knowledge base %s: duplicate item id %q", path, it.ID)
		}
		seen[it.ID] = struct{}{}
	}

	id := CollectionID(parsed.Collection)
	if id == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		id = CollectionID(abs)
	}
	return NewMemory(id, parsed.Items), nil
}

// WriteFile writes the collection as a YAML knowledge base.
func WriteFile(path string, m *Memory) error {
	data, err := yaml.Marshal(fileFormat{
		Collection: string(m.ID()),
		Items:      m.Snapshot(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge base: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write knowledge base %s: %w", path, err)
	}
	return nil
}
