// Package memory holds in-process implementations of the repository
// interfaces. They keep the same conditional-update semantics as the Mongo
// repositories and back the service tests.
package memory

import (
	"context"
	"strings"

	"autodiag/models"
)

// Tx runs transaction bodies directly; each repository call stays atomic on its own.
type Tx struct{}

func (Tx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func paginate[T any](items []T, page models.PageRequest) []T {
	page = page.Normalize()
	start := int(page.Skip())
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
