/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package keyexchange_test

import (
	"testing"

	"github.com/hyperledger-labs/bftclients/internal/keyexchange"
	"github.com/stretchr/testify/require"
)

func TestKeyFormat(t *testing.T) {
	for _, f := range []keyexchange.KeyFormat{keyexchange.HexKeyFormat, keyexchange.PemKeyFormat} {
		parsed, err := keyexchange.ParseKeyFormat(f.String())
		require.NoError(t, err)
		require.Equal(t, f, parsed)
	}

	parsed, err := keyexchange.ParseKeyFormat("PEM")
	require.NoError(t, err)
	require.Equal(t, keyexchange.PemKeyFormat, parsed)

	_, err = keyexchange.ParseKeyFormat("der")
	require.EqualError(t, err, "unknown key format 'der'")
	require.Equal(t, "unknown", keyexchange.KeyFormat(9).String())
}

func TestRegistry(t *testing.T) {
	r := keyexchange.NewRegistry()

	_, ok := r.ClientPublicKey(5)
	require.False(t, ok)

	r.LoadClientPublicKey(5, keyexchange.PublicKey{Key: "aa", Format: keyexchange.HexKeyFormat})
	r.LoadClientPublicKey(5, keyexchange.PublicKey{Key: "bb", Format: keyexchange.HexKeyFormat})
	r.LoadClientPublicKey(6, keyexchange.PublicKey{Key: "-----BEGIN", Format: keyexchange.PemKeyFormat})

	key, ok := r.ClientPublicKey(5)
	require.True(t, ok)
	require.Equal(t, "bb", key.Key)
	require.Equal(t, 2, r.Len())
}
