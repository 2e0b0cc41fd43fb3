package engine

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// defaultFileStem is the file name used for DefaultNamespace. Namespaces may
// not start with "_", so it never collides with a named partition.
const defaultFileStem = "_default"

// Persistence handles the disk I/O for the MemStore: one JSON file per namespace.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
	written map[string]uint64
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	// Ensure the data directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir, written: make(map[string]uint64)}, nil
}

func (p *Persistence) fileFor(namespace string) string {
	stem := namespace
	if namespace == DefaultNamespace {
		stem = defaultFileStem
	}
	return filepath.Join(p.DataDir, stem+".json")
}

// SaveNamespace writes a namespace snapshot atomically. Snapshots carry the
// store's version counter; one older than the last written is dropped.
func (p *Persistence) SaveNamespace(namespace string, version uint64, data map[string]Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if last, ok := p.written[namespace]; ok && version <= last {
		return nil
	}

	filePath := p.fileFor(namespace)
	tempPath := filePath + ".tmp"

	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tempPath, bytes, 0644); err != nil {
		return err
	}

	// Rename replaces the file in one step: a crash leaves the old file or the new one.
	if err := os.Rename(tempPath, filePath); err != nil {
		return err
	}
	p.written[namespace] = version
	return nil
}

// LoadAll returns all namespace data found in the data directory.
func (p *Persistence) LoadAll() (map[string]map[string]Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allData := make(map[string]map[string]Value)

	files, err := os.ReadDir(p.DataDir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		namespace := strings.TrimSuffix(file.Name(), ".json")
		if namespace == defaultFileStem {
			namespace = DefaultNamespace
		} else if err := ValidateNamespace(namespace); err != nil {
			log.Printf("Warning: Skipping namespace file %s: %v", file.Name(), err)
			continue
		}

		content, err := os.ReadFile(filepath.Join(p.DataDir, file.Name()))
		if err != nil {
			log.Printf("Warning: Could not read namespace file %s: %v", file.Name(), err)
			continue
		}

		var entries map[string]Value
		if err := json.Unmarshal(content, &entries); err != nil {
			log.Printf("Warning: Could not unmarshal namespace data from %s: %v", file.Name(), err)
			continue
		}
		allData[namespace] = entries
	}
	return allData, nil
}

func logPersistError(namespace string, err error) {
	log.Printf("Warning: Could not persist namespace %q: %v", namespace, err)
}
