package engine

import (
	"errors"
	"fmt"
)

// Migrate copies every namespace and key from src into dst.
// This works for:
// - file -> sqlite (moving to the durable backend)
// - sqlite -> file (exporting a readable snapshot)
func Migrate(src, dst Engine) error {
	namespaces, err := src.Namespaces()
	if err != nil {
		return fmt.Errorf("failed to list namespaces: %w", err)
	}

	for _, ns := range namespaces {
		from, err := src.Partition(ns)
		if err != nil {
			return fmt.Errorf("failed to open source namespace %q: %w", ns, err)
		}
		to, err := dst.Partition(ns)
		if err != nil {
			return fmt.Errorf("failed to open destination namespace %q: %w", ns, err)
		}

		keys, err := from.Keys()
		if err != nil {
			return fmt.Errorf("failed to list keys for namespace %q: %w", ns, err)
		}
		for _, k := range keys {
			val, err := from.Get(k)
			if errors.Is(err, ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read key %s: %w", k, err)
			}
			if err := to.Set(k, val); err != nil {
				return fmt.Errorf("failed to set key %s in destination: %w", k, err)
			}
		}
	}

	return nil
}
