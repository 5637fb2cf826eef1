/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package respages

import (
	"encoding/binary"
	"io"

	"github.com/VictoriaMetrics/fastcache"
)

// fastcache drops entries whose key, value and 4 byte length header reach
// its 64KB chunk size.
const maxCachedEntry = 64*1024 - 4 - 1

// CachedStore is a read-through, write-through page cache in front of
// another Store.
type CachedStore struct {
	store Store
	cache *fastcache.Cache
}

// NewCachedStore wraps store with a cache of at most maxBytes bytes.
func NewCachedStore(store Store, maxBytes int) *CachedStore {
	return &CachedStore{
		store: store,
		cache: fastcache.New(maxBytes),
	}
}

func (c *CachedStore) PageSize() uint32 { return c.store.PageSize() }

func (c *CachedStore) ReadPage(index uint32) ([]byte, error) {
	key := cacheKey(index)
	if page, ok := c.cache.HasGet(nil, key); ok {
		return page, nil
	}

	page, err := c.store.ReadPage(index)
	if err != nil || page == nil {
		return page, err
	}
	c.set(key, page)
	return page, nil
}

func (c *CachedStore) WritePage(index uint32, data []byte) error {
	key := cacheKey(index)
	if err := c.store.WritePage(index, data); err != nil {
		c.cache.Del(key)
		return err
	}

	page := make([]byte, c.store.PageSize())
	copy(page, data)
	c.set(key, page)
	return nil
}

// Stats returns the number of reads served and the number of reads that
// missed the cache.
func (c *CachedStore) Stats() (gets, misses uint64) {
	var s fastcache.Stats
	c.cache.UpdateStats(&s)
	return s.GetCalls, s.Misses
}

// Close drops the cache and closes the wrapped store if it can be closed.
func (c *CachedStore) Close() error {
	c.cache.Reset()
	if closer, ok := c.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *CachedStore) set(key, page []byte) {
	if len(key)+len(page) > maxCachedEntry {
		return
	}
	c.cache.Set(key, page)
}

func cacheKey(index uint32) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, index)
	return key
}
