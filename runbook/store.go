package runbook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jitsucom/backfill-runbooks/jitsubase/errorj"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned by Store.Load when no progress document exists yet
var ErrNotFound = errors.New("tracking not found")

// Store persists the whole progress document. Save must be atomic: a crash never leaves partially written document.
type Store interface {
	Load(ctx context.Context) (*Tracking, error)
	Save(ctx context.Context, t *Tracking) error
	// Location is human-readable document location used in log messages
	Location() string
}

// Init creates progress document for discovered units and persists it
func Init(ctx context.Context, store Store, header Tracking, units map[string]*UnitState) (*Tracking, error) {
	t := header
	if t.RunID == "" {
		t.RunID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	t.Units = units
	if t.Units == nil {
		t.Units = map[string]*UnitState{}
	}
	for _, u := range t.Units {
		if u.Status == "" {
			u.Status = StatusPending
		}
	}
	if err := store.Save(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// FileStore keeps progress document as indented json file
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Location() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (*Tracking, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, errorj.StoreError.Wrap(err, "failed to read tracking file %s", s.path)
	}
	t := &Tracking{}
	if err = json.Unmarshal(data, t); err != nil {
		return nil, errorj.StoreError.Wrap(err, "failed to parse tracking file %s", s.path)
	}
	if t.Units == nil {
		t.Units = map[string]*UnitState{}
	}
	return t, nil
}

// Save writes document to temp file in the same directory and renames it over the target
func (s *FileStore) Save(_ context.Context, t *Tracking) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errorj.StoreError.Wrap(err, "failed to serialize tracking")
	}
	return WriteFileAtomic(s.path, append(data, '\n'))
}

// WriteFileAtomic replaces file at path with data. Readers never see partially written file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errorj.StoreError.Wrap(err, "failed to create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errorj.StoreError.Wrap(err, "failed to create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpName, 0644)
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return errorj.StoreError.Wrap(err, "failed to write file %s", path)
	}
	return nil
}

// MemoryStore keeps deep copy of the last saved document
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
	// FailSaveAfter makes Save fail after N successful saves. 0 disables.
	FailSaveAfter int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (ms *MemoryStore) Location() string {
	return "memory"
}

func (ms *MemoryStore) Load(_ context.Context) (*Tracking, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.data == nil {
		return nil, ErrNotFound
	}
	t := &Tracking{}
	if err := json.Unmarshal(ms.data, t); err != nil {
		return nil, errorj.StoreError.Wrap(err, "failed to copy tracking")
	}
	return t, nil
}

func (ms *MemoryStore) Save(_ context.Context, t *Tracking) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.FailSaveAfter > 0 && ms.saves >= ms.FailSaveAfter {
		return errorj.StoreError.New("save #%d rejected", ms.saves+1)
	}
	data, err := json.Marshal(t)
	if err != nil {
		return errorj.StoreError.Wrap(err, "failed to copy tracking")
	}
	ms.data = data
	ms.saves++
	return nil
}

// Saves returns number of successful saves
func (ms *MemoryStore) Saves() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.saves
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
