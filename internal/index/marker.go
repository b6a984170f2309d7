package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "github.com/Aman-CERP/ontosearch/internal/errors"
)

const markerSuffix = ".commit.json"

// Marker records the last commit of an on-disk index.
type Marker struct {
	Collection  string    `json:"collection"`
	Generation  uint64    `json:"generation"`
	CommittedAt time.Time `json:"committed_at"`
	DocCount    uint64    `json:"doc_count"`
	Categories  []string  `json:"categories"`
	Fingerprint string    `json:"category_fingerprint"`
}

// MarkerStatus is a commit marker together with the health of its index.
type MarkerStatus struct {
	Marker
	Dir     string
	Healthy bool
	Problem string
}

// writeMarker atomically replaces the marker file at path.
func writeMarker(path string, m Marker) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal commit marker: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write commit marker: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit marker: %w", err)
	}
	return nil
}

// ReadMarker reads the commit marker at path.
func ReadMarker(path string) (*Marker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("commit marker %s is corrupt: %w", path, err)
	}
	return &m, nil
}

// ListMarkers returns the commit markers found under root, sorted by
// collection, each checked against its index directory.
func ListMarkers(root string) ([]MarkerStatus, error) {
	paths, err := filepath.Glob(filepath.Join(root, "*"+markerSuffix))
	if err != nil {
		return nil, err
	}

	out := make([]MarkerStatus, 0, len(paths))
	for _, p := range paths {
		dir := strings.TrimSuffix(p, markerSuffix)
		st := MarkerStatus{Dir: dir, Healthy: true}
		m, err := ReadMarker(p)
		if err != nil {
			st.Healthy = false
			st.Problem = err.Error()
		} else {
			st.Marker = *m
			if verr := validateIndexIntegrity(dir); verr != nil {
				st.Healthy = false
				st.Problem = verr.Error()
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Collection < out[j].Collection })
	return out, nil
}

// validateIndexIntegrity checks that a committed bleve index directory
// exists and has a readable index_meta.json.
func validateIndexIntegrity(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return corrupt("index directory missing", nil)
	}

	metaPath := filepath.Join(dir, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return corrupt("index_meta.json missing", nil)
	}
	if err != nil {
		return corrupt("cannot stat index_meta.json", err)
	}
	if info.Size() == 0 {
		return corrupt("index_meta.json is empty", nil)
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return corrupt("cannot read index_meta.json", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return corrupt("index_meta.json is not valid JSON", err)
	}
	return nil
}

func corrupt(msg string, cause error) error {
	return apperrors.New(apperrors.ErrCodeCorruptIndex, msg, cause).
		WithSuggestion("Run 'ontosearch index' to rebuild it.")
}
