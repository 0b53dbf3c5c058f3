package site

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Semior001/bitable-publisher/app/store"
	"github.com/samber/lo"
)

// Reconcile records the pages written in this run to the manifest.
// If prune is set, pages recorded by previous runs and not written in this
// one are removed from dir and forgotten by the manifest first.
// It returns the names of the removed pages.
func Reconcile(ctx context.Context, manifest store.Manifest, dir string, pages []store.Page, prune bool) ([]string, error) {
	var removed []string

	if prune {
		var err error
		if removed, err = removeStale(ctx, manifest, dir, pages); err != nil {
			return removed, err
		}
	}

	if err := manifest.Record(ctx, pages...); err != nil {
		return removed, fmt.Errorf("record pages: %w", err)
	}

	return removed, nil
}

func removeStale(ctx context.Context, manifest store.Manifest, dir string, pages []store.Page) ([]string, error) {
	recorded, err := manifest.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recorded pages: %w", err)
	}

	written := lo.KeyBy(pages, func(p store.Page) string { return p.Name })

	stale := lo.Filter(recorded, func(p store.Page, _ int) bool {
		_, ok := written[p.Name]
		return !ok && p.Name != IndexPage
	})

	var removed []string
	var rmErr error
	for _, p := range stale {
		// manifest entries must stay inside dir
		if filepath.Base(p.Name) != p.Name {
			rmErr = fmt.Errorf("recorded page %q is not a file name", p.Name)
			break
		}

		if err = os.Remove(filepath.Join(dir, p.Name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			rmErr = fmt.Errorf("remove stale page %s: %w", p.Name, err)
			break
		}

		removed = append(removed, p.Name)
	}

	// forget what is already gone even if some page could not be removed
	if err = manifest.Forget(ctx, removed...); err != nil {
		return removed, fmt.Errorf("forget stale pages: %w", err)
	}

	return removed, rmErr
}
