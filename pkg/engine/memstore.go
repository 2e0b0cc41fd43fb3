package engine

import (
	"sort"
	"sync"
)

// MemStore is a thread-safe in-memory Engine with optional file persistence.
type MemStore struct {
	mu sync.RWMutex
	// Structure: [namespace][key]value
	data      map[string]map[string]Value
	versions  map[string]uint64
	persister *Persistence
	notifier  Notifier
	wg        sync.WaitGroup
}

// NewMemStore initializes a store.
// It accepts existing data (from LoadAll) and a persister; both may be nil.
func NewMemStore(initialData map[string]map[string]Value, p *Persistence) *MemStore {
	if initialData == nil {
		initialData = make(map[string]map[string]Value)
	}
	return &MemStore{
		data:      initialData,
		versions:  make(map[string]uint64),
		persister: p,
	}
}

// Open loads every namespace persisted under dataDir and returns a store that
// keeps writing there.
func Open(dataDir string) (*MemStore, error) {
	p, err := NewPersistence(dataDir)
	if err != nil {
		return nil, err
	}
	allData, err := p.LoadAll()
	if err != nil {
		return nil, err
	}
	return NewMemStore(allData, p), nil
}

// Wait waits for all background persistence tasks to complete.
func (m *MemStore) Wait() {
	m.wg.Wait()
}

// Close waits for pending writes. The store stays usable afterwards.
func (m *MemStore) Close() error {
	m.Wait()
	return nil
}

func (m *MemStore) Partition(namespace string) (Partition, error) {
	if err := ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	return &memPartition{store: m, namespace: namespace}, nil
}

func (m *MemStore) Namespaces() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.data))
	for ns, entries := range m.data {
		if len(entries) > 0 {
			list = append(list, ns)
		}
	}
	sort.Strings(list)
	return list, nil
}

func (m *MemStore) get(namespace, key string) (Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[namespace][key]
	if !ok {
		return Value{}, ErrKeyNotFound
	}
	return val, nil
}

func (m *MemStore) set(namespace, key string, val Value) error {
	if err := checkWrite(key, val); err != nil {
		return err
	}
	m.mu.Lock()
	if m.data[namespace] == nil {
		m.data[namespace] = make(map[string]Value)
	}
	m.data[namespace][key] = val
	m.persistLocked(namespace)
	m.mu.Unlock()

	m.notifier.Notify(namespace, key)
	return nil
}

func (m *MemStore) delete(namespace, key string) error {
	m.mu.Lock()
	entries, ok := m.data[namespace]
	if ok {
		_, ok = entries[key]
	}
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(entries, key)
	m.persistLocked(namespace)
	m.mu.Unlock()

	m.notifier.Notify(namespace, key)
	return nil
}

func (m *MemStore) keys(namespace string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]string, 0, len(m.data[namespace]))
	for k := range m.data[namespace] {
		list = append(list, k)
	}
	sort.Strings(list)
	return list
}

// persistLocked snapshots namespace and saves it in the background.
// It MUST be called while holding m.mu.Lock.
func (m *MemStore) persistLocked(namespace string) {
	if m.persister == nil {
		return
	}
	m.versions[namespace]++
	version := m.versions[namespace]
	snapshot := m.copyNamespace(namespace)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.persister.SaveNamespace(namespace, version, snapshot); err != nil {
			logPersistError(namespace, err)
		}
	}()
}

// copyNamespace creates a copy of a namespace's entries.
// It MUST be called while holding m.mu.Lock or m.mu.RLock.
func (m *MemStore) copyNamespace(namespace string) map[string]Value {
	original := m.data[namespace]
	out := make(map[string]Value, len(original))
	for k, v := range original {
		out[k] = v
	}
	return out
}

type memPartition struct {
	store     *MemStore
	namespace string
}

func (p *memPartition) Namespace() string { return p.namespace }

func (p *memPartition) Get(key string) (Value, error) { return p.store.get(p.namespace, key) }

func (p *memPartition) Set(key string, val Value) error { return p.store.set(p.namespace, key, val) }

func (p *memPartition) Delete(key string) error { return p.store.delete(p.namespace, key) }

func (p *memPartition) Keys() ([]string, error) { return p.store.keys(p.namespace), nil }

func (p *memPartition) Watch(key string) (<-chan struct{}, func()) {
	return p.store.notifier.Subscribe(p.namespace, key)
}
