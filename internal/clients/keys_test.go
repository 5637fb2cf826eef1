/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package clients

import (
	"testing"

	"github.com/hyperledger-labs/bftclients/internal/keyexchange"
	"github.com/stretchr/testify/require"
)

func TestKeyPage(t *testing.T) {
	key := keyexchange.PublicKey{Key: "-----BEGIN PUBLIC KEY-----", Format: keyexchange.PemKeyFormat}

	page := make([]byte, 64)
	copy(page, encodeKeyPage(key))

	decoded, ok, err := decodeKeyPage(page)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, key, decoded)
}

func TestKeyPageEmpty(t *testing.T) {
	_, ok, err := decodeKeyPage(make([]byte, 64))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKeyPageMalformed(t *testing.T) {
	_, _, err := decodeKeyPage([]byte{0, 0})
	require.EqualError(t, err, "key page of 2 bytes is shorter than its header")

	_, _, err = decodeKeyPage([]byte{0, 0, 0, 9, 0, 'a'})
	require.EqualError(t, err, "key length 9 exceeds the 1 available bytes")
}
