package syncclient

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Stats summarizes one sync run.
type Stats struct {
	Checked   int           `json:"checked"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Deleted   int           `json:"deleted"`
	Redirects int           `json:"redirects"`
	Errors    []string      `json:"errors,omitempty"`
	FullSync  bool          `json:"full_sync"`
	Duration  time.Duration `json:"duration"`
}

// State is everything a consumer persists between sync runs. Hashes maps
// post ID to the content fingerprint last seen for it; a missing entry means
// the post is unknown locally.
type State struct {
	Hashes       map[string]string `json:"hashes"`
	LastSyncTime int64             `json:"last_sync_time"` // UnixMilli, from the feed's last_sync
	LastFullSync int64             `json:"last_full_sync"` // UnixMilli
	FeedETag     string            `json:"feed_etag,omitempty"` // validator of the last incremental first page
	TotalSyncs   int64             `json:"total_syncs"`
	LastRun      *Stats            `json:"last_run,omitempty"`
}

// NewState returns an empty state that forces a full pass on first sync.
func NewState() *State {
	return &State{Hashes: make(map[string]string)}
}

// StateStore persists sync state between runs.
type StateStore interface {
	Load() (*State, error)
	Save(*State) error
}

// FileStateStore keeps the state as one JSON file, written atomically via a
// temp file and rename so a crash mid-save never corrupts the previous state.
type FileStateStore struct {
	Path string
}

// Load reads the state file. A missing file yields a fresh empty state.
func (f *FileStateStore) Load() (*State, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read sync state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse sync state: %w", err)
	}
	if st.Hashes == nil {
		st.Hashes = make(map[string]string)
	}
	return &st, nil
}

// Save writes the state file atomically.
func (f *FileStateStore) Save(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sync state: %w", err)
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sync-state-*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace sync state: %w", err)
	}
	return nil
}
