package host

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"maps"
	"strings"
	"sync"

	"github.com/mind-engage/coursepack/internal/logger"
)

// KeyPrefix namespaces standalone keys in shared storage.
const KeyPrefix = "coursepack:"

// Storage is a durable string store, the shape of a browser's local
// storage.
type Storage interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	RemoveItem(key string) error
	Available() bool
}

// StorageKey derives the durable key from the page address. Query and
// fragment are ignored so reloads with different parameters reattach.
func StorageKey(address string) string {
	if i := strings.IndexAny(address, "?#"); i >= 0 {
		address = address[:i]
	}
	sum := sha256.Sum256([]byte(address))
	return KeyPrefix + hex.EncodeToString(sum[:])[:16]
}

// StandaloneAdapter keeps all cmi values in one JSON object under a single
// storage key. Writes are staged until Commit.
type StandaloneAdapter struct {
	store       Storage
	key         string
	values      map[string]string
	initialized bool
	log         *logger.Logger
}

func NewStandaloneAdapter(store Storage, address string, log *logger.Logger) *StandaloneAdapter {
	if log == nil {
		log = logger.Nop()
	}
	return &StandaloneAdapter{store: store, key: StorageKey(address), values: map[string]string{}, log: log}
}

func (a *StandaloneAdapter) Mode() Mode { return ModeStandalone }

func (a *StandaloneAdapter) Key() string { return a.key }

func (a *StandaloneAdapter) Initialize() bool {
	if a.store == nil || !a.store.Available() {
		return false
	}
	raw, ok, err := a.store.GetItem(a.key)
	switch {
	case err != nil:
		a.log.Warn("standalone storage read failed", "key", a.key, "error", err)
	case ok && raw != "":
		var vals map[string]string
		if err := json.Unmarshal([]byte(raw), &vals); err != nil {
			a.log.Warn("standalone record unreadable, starting fresh", "key", a.key, "error", err)
		} else {
			a.values = vals
		}
	}
	if a.values == nil {
		a.values = map[string]string{}
	}
	a.initialized = true
	if s := a.values[KeyLessonStatus]; s == "" || s == "not attempted" {
		a.values[KeyLessonStatus] = "incomplete"
	}
	return true
}

func (a *StandaloneAdapter) Terminate() bool {
	if !a.initialized {
		return false
	}
	ok := a.Commit()
	a.initialized = false
	return ok
}

func (a *StandaloneAdapter) ReadValue(key string) (string, bool) {
	if !a.initialized {
		return "", false
	}
	v, ok := a.values[key]
	return v, ok
}

func (a *StandaloneAdapter) WriteValue(key, value string) bool {
	if !a.initialized {
		return false
	}
	a.values[key] = value
	return true
}

func (a *StandaloneAdapter) Commit() bool {
	if !a.initialized {
		return false
	}
	b, err := json.Marshal(a.values)
	if err != nil {
		return false
	}
	if err := a.store.SetItem(a.key, string(b)); err != nil {
		a.log.Warn("standalone storage write failed", "key", a.key, "error", err)
		return false
	}
	return true
}

// MemoryStorage is a process-local Storage, used in tests and as the
// fallback store of the CLI preview.
type MemoryStorage struct {
	mu       sync.Mutex
	items    map[string]string
	Disabled bool
}

func NewMemoryStorage() *MemoryStorage { return &MemoryStorage{items: map[string]string{}} }

func (m *MemoryStorage) Available() bool { return !m.Disabled }

func (m *MemoryStorage) GetItem(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Items returns a copy of the stored items.
func (m *MemoryStorage) Items() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.items)
}
