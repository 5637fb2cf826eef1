/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package respages

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

var (
	pageKeyPrefix = []byte("p")
	pageSizeKey   = []byte("meta.pagesize")
)

type dbState int32

const (
	closed dbState = iota
	opened
)

// LevelDBStore is a Store persisted in a goleveldb database. The page size
// is recorded in the database on first use and checked on every reopen.
type LevelDBStore struct {
	path     string
	pageSize uint32

	mutex   sync.RWMutex
	db      *leveldb.DB
	dbState dbState

	readOpts  *opt.ReadOptions
	writeOpts *opt.WriteOptions
}

// OpenLevelDBStore opens, creating it if missing, the page database at path.
func OpenLevelDBStore(path string, pageSize uint32, syncWrites bool) (*LevelDBStore, error) {
	if pageSize == 0 {
		return nil, errors.New("page size must be positive")
	}

	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "error opening leveldb at [%s]", path)
	}

	s := &LevelDBStore{
		path:      path,
		pageSize:  pageSize,
		db:        db,
		dbState:   opened,
		readOpts:  &opt.ReadOptions{},
		writeOpts: &opt.WriteOptions{Sync: syncWrites},
	}

	if err := s.checkPageSize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debugf("Opened reserved pages database at [%s] with page size %d", path, pageSize)
	return s, nil
}

func (s *LevelDBStore) checkPageSize() error {
	stored, err := s.db.Get(pageSizeKey, s.readOpts)
	if err == leveldb.ErrNotFound {
		value := make([]byte, 4)
		binary.BigEndian.PutUint32(value, s.pageSize)
		return errors.Wrap(s.db.Put(pageSizeKey, value, &opt.WriteOptions{Sync: true}), "error recording page size")
	}
	if err != nil {
		return errors.Wrap(err, "error reading page size")
	}
	if len(stored) != 4 {
		return errors.Errorf("malformed page size record of %d bytes at [%s]", len(stored), s.path)
	}
	if storedSize := binary.BigEndian.Uint32(stored); storedSize != s.pageSize {
		return errors.Errorf("database at [%s] has page size %d, configured page size is %d", s.path, storedSize, s.pageSize)
	}
	return nil
}

func (s *LevelDBStore) PageSize() uint32 { return s.pageSize }

func (s *LevelDBStore) ReadPage(index uint32) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.dbState == closed {
		return nil, errors.New("reserved pages database is closed")
	}

	value, err := s.db.Get(pageKey(index), s.readOpts)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		logger.Errorf("Error retrieving page %d: %s", index, err)
		return nil, errors.Wrapf(err, "error retrieving page %d", index)
	}
	return value, nil
}

func (s *LevelDBStore) WritePage(index uint32, data []byte) error {
	if uint32(len(data)) > s.pageSize {
		return errors.Errorf("data of %d bytes does not fit page %d of %d bytes", len(data), index, s.pageSize)
	}

	page := make([]byte, s.pageSize)
	copy(page, data)

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.dbState == closed {
		return errors.New("reserved pages database is closed")
	}

	if err := s.db.Put(pageKey(index), page, s.writeOpts); err != nil {
		logger.Errorf("Error writing page %d: %s", index, err)
		return errors.Wrapf(err, "error writing page %d", index)
	}
	return nil
}

// Close closes the underlying database. Close can be called multiple times.
func (s *LevelDBStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.dbState == closed {
		return nil
	}
	s.dbState = closed
	return errors.Wrap(s.db.Close(), "error closing leveldb")
}

func pageKey(index uint32) []byte {
	key := make([]byte, len(pageKeyPrefix)+4)
	copy(key, pageKeyPrefix)
	binary.BigEndian.PutUint32(key[len(pageKeyPrefix):], index)
	return key
}
