/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package respages

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

// MemStore is a Store kept in process memory.
type MemStore struct {
	mutex    sync.RWMutex
	pageSize uint32
	pages    map[uint32][]byte
	written  *bitset.BitSet
}

// NewMemStore creates an empty MemStore of pages of pageSize bytes.
func NewMemStore(pageSize uint32) *MemStore {
	return &MemStore{
		pageSize: pageSize,
		pages:    map[uint32][]byte{},
		written:  bitset.New(0),
	}
}

func (m *MemStore) PageSize() uint32 { return m.pageSize }

func (m *MemStore) ReadPage(index uint32) ([]byte, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	page, ok := m.pages[index]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), page...), nil
}

func (m *MemStore) WritePage(index uint32, data []byte) error {
	if uint32(len(data)) > m.pageSize {
		return errors.Errorf("data of %d bytes does not fit page %d of %d bytes", len(data), index, m.pageSize)
	}

	page := make([]byte, m.pageSize)
	copy(page, data)

	m.mutex.Lock()
	m.pages[index] = page
	m.written.Set(uint(index))
	m.mutex.Unlock()

	return nil
}

// WrittenPages returns the indexes of every page written so far in
// ascending order.
func (m *MemStore) WrittenPages() []uint32 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	indexes := make([]uint32, 0, m.written.Count())
	for i, ok := m.written.NextSet(0); ok; i, ok = m.written.NextSet(i + 1) {
		indexes = append(indexes, uint32(i))
	}
	return indexes
}
