/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package respages

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStore(t *testing.T) {
	store := NewMemStore(4)
	require.Equal(t, uint32(4), store.PageSize())

	page, err := store.ReadPage(9)
	require.NoError(t, err)
	require.Nil(t, page)

	require.NoError(t, store.WritePage(9, []byte{1, 2}))
	require.NoError(t, store.WritePage(2, []byte{3, 4, 5, 6}))
	require.NoError(t, store.WritePage(9, []byte{7}))

	page, err = store.ReadPage(9)
	require.NoError(t, err)
	require.Equal(t, []byte{7, 0, 0, 0}, page)

	page[0] = 42
	again, err := store.ReadPage(9)
	require.NoError(t, err)
	require.Equal(t, byte(7), again[0], "reads must not alias stored pages")

	require.Equal(t, []uint32{2, 9}, store.WrittenPages())

	err = store.WritePage(1, []byte{1, 2, 3, 4, 5})
	require.EqualError(t, err, "data of 5 bytes does not fit page 1 of 4 bytes")
}
