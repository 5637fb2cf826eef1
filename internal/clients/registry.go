/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package clients

import (
	"sort"

	"github.com/pkg/errors"
)

// Registry classifies node ids into the client categories of a deployment.
// It is immutable once created.
type Registry struct {
	proxyClients    map[uint16]struct{}
	externalClients map[uint16]struct{}
	clientServices  map[uint16]struct{}
	internalClients map[uint16]struct{}

	// clientIDs is the union of all categories in ascending order.
	clientIDs []uint16
	ordinals  map[uint16]uint32
}

// NewRegistry builds a Registry from the four client categories. The
// categories must be disjoint and at least one must be non-empty.
func NewRegistry(proxyClients, externalClients, clientServices, internalClients []uint16) (*Registry, error) {
	r := &Registry{
		proxyClients:    toSet(proxyClients),
		externalClients: toSet(externalClients),
		clientServices:  toSet(clientServices),
		internalClients: toSet(internalClients),
		ordinals:        map[uint16]uint32{},
	}

	categories := []struct {
		name string
		ids  map[uint16]struct{}
	}{
		{"proxy", r.proxyClients},
		{"external", r.externalClients},
		{"client service", r.clientServices},
		{"internal", r.internalClients},
	}

	owner := map[uint16]string{}
	for _, category := range categories {
		for id := range category.ids {
			if other, exists := owner[id]; exists {
				return nil, errors.Errorf("client %d belongs to both the %s and %s categories", id, other, category.name)
			}
			owner[id] = category.name
			r.clientIDs = append(r.clientIDs, id)
		}
	}
	if len(r.clientIDs) == 0 {
		return nil, errors.New("no clients configured")
	}

	sort.Slice(r.clientIDs, func(i, j int) bool { return r.clientIDs[i] < r.clientIDs[j] })
	for i, id := range r.clientIDs {
		r.ordinals[id] = uint32(i)
	}

	return r, nil
}

func toSet(ids []uint16) map[uint16]struct{} {
	set := make(map[uint16]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (r *Registry) IsValidClient(clientID uint16) bool {
	_, ok := r.ordinals[clientID]
	return ok
}

func (r *Registry) IsProxy(clientID uint16) bool {
	_, ok := r.proxyClients[clientID]
	return ok
}

func (r *Registry) IsExternal(clientID uint16) bool {
	_, ok := r.externalClients[clientID]
	return ok
}

func (r *Registry) IsClientService(clientID uint16) bool {
	_, ok := r.clientServices[clientID]
	return ok
}

func (r *Registry) IsInternal(clientID uint16) bool {
	_, ok := r.internalClients[clientID]
	return ok
}

// ClientIDs returns every valid client id in ascending order.
func (r *Registry) ClientIDs() []uint16 {
	return append([]uint16(nil), r.clientIDs...)
}

// Ordinal is the position of a client in ClientIDs. It decides where the
// client's reserved pages are placed.
func (r *Registry) Ordinal(clientID uint16) (uint32, bool) {
	ordinal, ok := r.ordinals[clientID]
	return ordinal, ok
}

func (r *Registry) Len() int { return len(r.clientIDs) }
