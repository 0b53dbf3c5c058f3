package store

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var pagesBkt = []byte("pages")

// Bolt is a page manifest kept in a BoltDB file, one key per page name.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens or creates the manifest file at the given path.
func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}

	b := &Bolt{db: db}
	if err = b.update(func(*bolt.Bucket) error { return nil }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init manifest: %w", err)
	}

	return b, nil
}

// Record stores the pages in a single transaction, replacing the previous
// records of the same names.
func (b *Bolt) Record(_ context.Context, pages ...Page) error {
	return b.update(func(bkt *bolt.Bucket) error {
		for _, p := range pages {
			bts, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("marshal page %s: %w", p.Name, err)
			}
			if err = bkt.Put([]byte(p.Name), bts); err != nil {
				return fmt.Errorf("put page %s: %w", p.Name, err)
			}
		}
		return nil
	})
}

// Forget drops the records of the given pages. Unknown names are ignored.
func (b *Bolt) Forget(_ context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}

	return b.update(func(bkt *bolt.Bucket) error {
		for _, name := range names {
			if err := bkt.Delete([]byte(name)); err != nil {
				return fmt.Errorf("delete page %s: %w", name, err)
			}
		}
		return nil
	})
}

// List returns all recorded pages ordered by name.
func (b *Bolt) List(context.Context) (pages []Page, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(pagesBkt).ForEach(func(k, v []byte) error {
			var p Page
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("unmarshal page %s: %w", k, err)
			}
			pages = append(pages, p)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return pages, nil
}

// Close closes the manifest file.
func (b *Bolt) Close() error { return b.db.Close() }

func (b *Bolt) update(fn func(bkt *bolt.Bucket) error) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists(pagesBkt)
		if err != nil {
			return fmt.Errorf("make bucket %s: %w", pagesBkt, err)
		}
		return fn(bkt)
	})
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
