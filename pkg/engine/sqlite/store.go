package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/celerix-dev/celerix-settings/pkg/engine"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS entries (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	kind      TEXT NOT NULL,
	payload   TEXT NOT NULL,
	PRIMARY KEY (namespace, key)
)`

// Store is an engine.Engine persisted in a SQLite database file.
type Store struct {
	sqlDB    *sql.DB
	notifier engine.Notifier
}

// Open opens a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := dataSourceName(path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// dataSourceName builds a file: URI for path. The path is percent-escaped so
// '?', '#' and '%' in file names reach SQLite literally.
func dataSourceName(path string) string {
	escaped := (&url.URL{Path: filepath.ToSlash(filepath.Clean(path))}).EscapedPath()
	return "file:" + escaped + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Partition(namespace string) (engine.Partition, error) {
	if err := engine.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	return &partition{store: s, namespace: namespace}, nil
}

func (s *Store) Namespaces() ([]string, error) {
	rows, err := s.sqlDB.Query("SELECT DISTINCT namespace FROM entries ORDER BY namespace")
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	defer rows.Close()

	list := []string{}
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("scan namespace: %w", err)
		}
		list = append(list, ns)
	}
	return list, rows.Err()
}

type partition struct {
	store     *Store
	namespace string
}

func (p *partition) Namespace() string { return p.namespace }

func (p *partition) Get(key string) (engine.Value, error) {
	var payload string
	row := p.store.sqlDB.QueryRow("SELECT payload FROM entries WHERE namespace = ? AND key = ?", p.namespace, key)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.Value{}, engine.ErrKeyNotFound
		}
		return engine.Value{}, fmt.Errorf("get %q: %w", key, err)
	}

	var val engine.Value
	if err := json.Unmarshal([]byte(payload), &val); err != nil {
		return engine.Value{}, fmt.Errorf("decode %q: %w", key, err)
	}
	return val, nil
}

func (p *partition) Set(key string, val engine.Value) error {
	if !val.IsValid() {
		return engine.ErrInvalidValue
	}
	if err := engine.ValidateKey(key); err != nil {
		return err
	}
	payload, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	_, err = p.store.sqlDB.Exec(
		`INSERT INTO entries (namespace, key, kind, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET kind = excluded.kind, payload = excluded.payload`,
		p.namespace, key, val.Kind().String(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	p.store.notifier.Notify(p.namespace, key)
	return nil
}

func (p *partition) Delete(key string) error {
	res, err := p.store.sqlDB.Exec("DELETE FROM entries WHERE namespace = ? AND key = ?", p.namespace, key)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		p.store.notifier.Notify(p.namespace, key)
	}
	return nil
}

func (p *partition) Keys() ([]string, error) {
	rows, err := p.store.sqlDB.Query("SELECT key FROM entries WHERE namespace = ? ORDER BY key", p.namespace)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (p *partition) Watch(key string) (<-chan struct{}, func()) {
	return p.store.notifier.Subscribe(p.namespace, key)
}

var _ engine.Engine = (*Store)(nil)
