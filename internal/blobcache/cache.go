// Package blobcache caches blob contents at immutable commits.
package blobcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"codeintel/internal/codeview"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

var commitID = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Options configures a Cache.
type Options struct {
	// CacheSize is the number of blobs kept in memory.
	CacheSize int
	// CompressMinSize is the encoded size above which values are compressed.
	CompressMinSize int
}

// Cache decorates a ContentFetcher. Blobs addressed by a full commit id
// never change, so they are kept in memory and in badger. Anything else goes
// straight to the wrapped fetcher.
type Cache struct {
	next   codeview.ContentFetcher
	db     *badger.DB
	mem    *lru.Cache[uint64, []string]
	codec  *compressor
	logger *zap.Logger
}

var _ codeview.ContentFetcher = (*Cache)(nil)

// New wraps next. db may be nil for a memory-only cache.
func New(next codeview.ContentFetcher, db *badger.DB, opts Options, logger *zap.Logger) (*Cache, error) {
	if opts.CacheSize == 0 {
		opts.CacheSize = 512
	}
	if opts.CompressMinSize == 0 {
		opts.CompressMinSize = 1024
	}

	mem, err := lru.New[uint64, []string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	codec, err := newCompressor(opts.CompressMinSize)
	if err != nil {
		return nil, err
	}

	return &Cache{
		next:   next,
		db:     db,
		mem:    mem,
		codec:  codec,
		logger: logger,
	}, nil
}

// Cacheable reports whether blob is addressed by an immutable commit.
func Cacheable(blob codeview.BlobSpec) bool {
	return commitID.MatchString(blob.CommitID)
}

func (c *Cache) FetchBlobContentLines(ctx context.Context, blob codeview.BlobSpec) ([]string, error) {
	if !Cacheable(blob) {
		return c.next.FetchBlobContentLines(ctx, blob)
	}

	key := hashKey(blob)
	if lines, ok := c.mem.Get(key); ok {
		return lines, nil
	}

	lines, err := c.load(key)
	switch {
	case err == nil:
		c.mem.Add(key, lines)
		return lines, nil
	case !errors.Is(err, badger.ErrKeyNotFound):
		c.logger.Warn("reading blob cache", zap.String("repo", blob.RepoName), zap.Error(err))
	}

	lines, err = c.next.FetchBlobContentLines(ctx, blob)
	if err != nil {
		return nil, err
	}
	c.mem.Add(key, lines)
	if err := c.store(key, lines); err != nil {
		c.logger.Warn("writing blob cache", zap.String("repo", blob.RepoName), zap.Error(err))
	}
	return lines, nil
}

// Len is the number of blobs held in memory.
func (c *Cache) Len() int {
	return c.mem.Len()
}

func hashKey(blob codeview.BlobSpec) uint64 {
	return xxh3.HashString(blob.RepoName + "\x00" + blob.CommitID + "\x00" + blob.FilePath)
}

func storeKey(key uint64) []byte {
	return []byte(fmt.Sprintf("blob:%016x", key))
}

func (c *Cache) load(key uint64) ([]string, error) {
	if c.db == nil {
		return nil, badger.ErrKeyNotFound
	}

	var lines []string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data, err := c.codec.decompress(val)
			if err != nil {
				return fmt.Errorf("decompressing blob: %w", err)
			}
			return json.Unmarshal(data, &lines)
		})
	})
	return lines, err
}

func (c *Cache) store(key uint64, lines []string) error {
	if c.db == nil {
		return nil
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	data = c.codec.compress(data)
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(storeKey(key), data)
	})
}
