/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keyexchange keeps the public keys clients sign their requests with.
package keyexchange

import (
	"strings"
	"sync"

	"github.com/hyperledger-labs/bftclients/common/flogging"
	"github.com/pkg/errors"
)

var logger = flogging.MustGetLogger("bftclients.keyexchange")

// KeyFormat is the textual encoding of a public key.
type KeyFormat uint8

const (
	HexKeyFormat KeyFormat = iota
	PemKeyFormat
)

func (f KeyFormat) String() string {
	switch f {
	case HexKeyFormat:
		return "hex"
	case PemKeyFormat:
		return "pem"
	default:
		return "unknown"
	}
}

// ParseKeyFormat parses the name of a key format.
func ParseKeyFormat(name string) (KeyFormat, error) {
	switch strings.ToLower(name) {
	case "hex":
		return HexKeyFormat, nil
	case "pem":
		return PemKeyFormat, nil
	default:
		return 0, errors.Errorf("unknown key format '%s'", name)
	}
}

// PublicKey is a client public key together with its format.
type PublicKey struct {
	Key    string
	Format KeyFormat
}

// Registry is the in-process record of the public key of every client.
// It is safe for concurrent use.
type Registry struct {
	mutex sync.RWMutex
	keys  map[uint16]PublicKey
}

func NewRegistry() *Registry {
	return &Registry{keys: map[uint16]PublicKey{}}
}

// LoadClientPublicKey installs or replaces the key of a client.
func (r *Registry) LoadClientPublicKey(clientID uint16, key PublicKey) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if prev, ok := r.keys[clientID]; ok && prev != key {
		logger.Infof("Replacing %s public key of client %d", prev.Format, clientID)
	}
	r.keys[clientID] = key
}

// ClientPublicKey returns the key of a client, if one was loaded.
func (r *Registry) ClientPublicKey(clientID uint16) (PublicKey, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	key, ok := r.keys[clientID]
	return key, ok
}

// Len is the number of clients with a loaded key.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.keys)
}
