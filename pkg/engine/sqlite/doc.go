// Package sqlite provides a SQLite-backed engine.
//
// Every namespace lives in one table keyed by (namespace, key); values are
// stored in their JSON form so the file stays readable with the sqlite3 shell.
// Change notifications are delivered in-process only.
package sqlite
