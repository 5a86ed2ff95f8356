// Package archivemeta wraps the archive contributor with a small embedded
// cache so re-scanning an unchanged jar skips re-reading its zip central
// directory. Classnames are cached by the artifact's SHA-1, populated by
// the minimal contributor earlier in the same populate phase.
package archivemeta

import (
	"fmt"
	"strings"

	"repoindex/internal/contributor"
	"repoindex/internal/contributor/archive"
	"repoindex/internal/record"

	"go.etcd.io/bbolt"
)

var classnamesBucket = []byte("classnames")

// CachedContributor decorates archive.Contributor with a bbolt-backed
// classname cache keyed by SHA-1 digest.
type CachedContributor struct {
	inner *archive.Contributor
	db    *bbolt.DB
}

// Open opens (creating if absent) the cache database at path and returns a
// contributor that consults it before falling back to reading the archive.
func Open(path string) (*CachedContributor, error) {
	db, err := bbolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("archivemeta: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(classnamesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &CachedContributor{inner: archive.New(), db: db}, nil
}

// Close releases the underlying database handle.
func (c *CachedContributor) Close() error { return c.db.Close() }

func (c *CachedContributor) ID() string { return c.inner.ID() }

func (c *CachedContributor) Populate(ctx *contributor.ArtifactContext) {
	if ctx.Info.SHA1 == "" {
		c.inner.Populate(ctx)
		return
	}

	var cached string
	var hit bool
	_ = c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(classnamesBucket).Get([]byte(ctx.Info.SHA1))
		if v != nil {
			cached = string(v)
			hit = true
		}
		return nil
	})
	if hit {
		if cached != "" {
			ctx.Info.Classnames = strings.Split(cached, "\n")
		}
		return
	}

	c.inner.Populate(ctx)

	_ = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(classnamesBucket).Put([]byte(ctx.Info.SHA1), []byte(strings.Join(ctx.Info.Classnames, "\n")))
	})
}

func (c *CachedContributor) UpdateDocument(info record.ArtifactInfo, rec *record.Record) {
	c.inner.UpdateDocument(info, rec)
}

func (c *CachedContributor) UpdateArtifactInfo(rec record.Record, info *record.ArtifactInfo) {
	c.inner.UpdateArtifactInfo(rec, info)
}
