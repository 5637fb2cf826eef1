/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package respages

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelDBStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages")

	store, err := OpenLevelDBStore(path, 16, true)
	require.NoError(t, err)

	page, err := store.ReadPage(3)
	require.NoError(t, err)
	require.Nil(t, page)

	require.NoError(t, store.WritePage(3, []byte("reply")))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.ReadPage(3)
	require.EqualError(t, err, "reserved pages database is closed")

	store, err = OpenLevelDBStore(path, 16, false)
	require.NoError(t, err)
	defer store.Close()

	page, err = store.ReadPage(3)
	require.NoError(t, err)
	require.Len(t, page, 16)
	require.Equal(t, []byte("reply"), page[:5])
	require.Equal(t, make([]byte, 11), page[5:])
}

func TestLevelDBStorePageSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages")

	store, err := OpenLevelDBStore(path, 16, false)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = OpenLevelDBStore(path, 32, false)
	require.EqualError(t, err, "database at ["+path+"] has page size 16, configured page size is 32")

	_, err = OpenLevelDBStore(path, 0, false)
	require.EqualError(t, err, "page size must be positive")
}

func TestLevelDBStoreOversizedWrite(t *testing.T) {
	store, err := OpenLevelDBStore(filepath.Join(t.TempDir(), "pages"), 4, false)
	require.NoError(t, err)
	defer store.Close()

	err = store.WritePage(0, []byte("too long"))
	require.EqualError(t, err, "data of 8 bytes does not fit page 0 of 4 bytes")
}

func TestPageKeysSortByIndex(t *testing.T) {
	require.Equal(t, []byte{'p', 0, 0, 1, 0}, pageKey(256))
	require.Less(t, string(pageKey(255)), string(pageKey(256)))
}
