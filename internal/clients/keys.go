/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package clients

import (
	"encoding/binary"
	"sync"

	"github.com/hyperledger-labs/bftclients/internal/keyexchange"
	"github.com/pkg/errors"
)

// A key page holds
//
//	u32 keyLength | u8 format | key
//
// and a zero key length means no key.
const keyPageHeaderSize = 4 + 1

type publicKeyInfo struct {
	mutex sync.RWMutex
	key   keyexchange.PublicKey
	set   bool
}

func (p *publicKeyInfo) get() (keyexchange.PublicKey, bool) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.key, p.set
}

func (p *publicKeyInfo) put(key keyexchange.PublicKey) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.key, p.set = key, true
}

func encodeKeyPage(key keyexchange.PublicKey) []byte {
	page := make([]byte, keyPageHeaderSize+len(key.Key))
	binary.BigEndian.PutUint32(page, uint32(len(key.Key)))
	page[4] = byte(key.Format)
	copy(page[keyPageHeaderSize:], key.Key)
	return page
}

func decodeKeyPage(page []byte) (keyexchange.PublicKey, bool, error) {
	if len(page) < keyPageHeaderSize {
		return keyexchange.PublicKey{}, false, errors.Errorf("key page of %d bytes is shorter than its header", len(page))
	}
	keyLength := binary.BigEndian.Uint32(page)
	if keyLength == 0 {
		return keyexchange.PublicKey{}, false, nil
	}
	if uint64(keyLength) > uint64(len(page)-keyPageHeaderSize) {
		return keyexchange.PublicKey{}, false, errors.Errorf("key length %d exceeds the %d available bytes", keyLength, len(page)-keyPageHeaderSize)
	}
	key := keyexchange.PublicKey{
		Key:    string(page[keyPageHeaderSize : keyPageHeaderSize+keyLength]),
		Format: keyexchange.KeyFormat(page[4]),
	}
	return key, true, nil
}

// SetClientPublicKey persists the public key of a client in its key page
// and records it.
func (m *Manager) SetClientPublicKey(clientID uint16, key string, format keyexchange.KeyFormat) error {
	ci, ok := m.clients[clientID]
	if !ok {
		return errors.Errorf("client %d is not a valid client", clientID)
	}
	if key == "" {
		return errors.Errorf("empty public key for client %d", clientID)
	}
	if limit := m.region.PageSize() - keyPageHeaderSize; uint32(len(key)) > limit {
		return errors.Errorf("public key of client %d is %d bytes, exceeds the %d bytes a key page holds", clientID, len(key), limit)
	}

	publicKey := keyexchange.PublicKey{Key: key, Format: format}
	if err := m.region.SavePage(m.KeyPageID(clientID), encodeKeyPage(publicKey)); err != nil {
		return errors.WithMessagef(err, "failed saving public key of client %d", clientID)
	}
	ci.keys.put(publicKey)

	m.logger.Infow("Set client public key", "clientID", clientID, "format", format)
	return nil
}

// ClientPublicKey returns the recorded public key of a client.
func (m *Manager) ClientPublicKey(clientID uint16) (keyexchange.PublicKey, bool) {
	ci, ok := m.clients[clientID]
	if !ok {
		return keyexchange.PublicKey{}, false
	}
	return ci.keys.get()
}

func (m *Manager) loadPublicKeyPage(clientID uint16, ci *clientInfo) error {
	page, found, err := m.region.LoadPage(m.KeyPageID(clientID))
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	key, ok, err := decodeKeyPage(page)
	if err != nil {
		return errors.WithMessagef(err, "malformed public key page of client %d", clientID)
	}
	if !ok {
		return nil
	}
	ci.keys.put(key)
	m.keyExchanger.LoadClientPublicKey(clientID, key)
	m.logger.Debugw("Loaded client public key", "clientID", clientID, "format", key.Format)
	return nil
}
