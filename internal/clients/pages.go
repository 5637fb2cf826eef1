/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package clients

import (
	"github.com/hyperledger-labs/bftclients/internal/msgs"
	"github.com/pkg/errors"
)

// The reserved pages of a client start with its public key page, followed
// by one run of pages per index in batch holding the last reply stored
// there:
//
//	base = ordinal(client) * pagesPerClient
//	key page         base
//	reply slot i     base + 1 + i*pagesPerRequest

// ReservedPagesPerRequest is the number of pages a reply of maxReplySize
// bytes spans.
func ReservedPagesPerRequest(pageSize, maxReplySize uint32) uint32 {
	return (maxReplySize + pageSize - 1) / pageSize
}

// ReservedPagesPerClient is the number of pages reserved for each client.
func ReservedPagesPerClient(pageSize, maxReplySize uint32, maxReqsPerClient uint16) uint32 {
	return 1 + ReservedPagesPerRequest(pageSize, maxReplySize)*uint32(maxReqsPerClient)
}

// PagesPerClient is the number of pages reserved for each client.
func (m *Manager) PagesPerClient() uint32 { return m.pagesPerClient }

// PagesPerRequest is the number of pages of a reply slot.
func (m *Manager) PagesPerRequest() uint32 { return m.pagesPerRequest }

// KeyPageID is the id of the public key page of a valid client.
func (m *Manager) KeyPageID(clientID uint16) uint32 {
	ordinal, _ := m.registry.Ordinal(clientID)
	return ordinal * m.pagesPerClient
}

// ReplyFirstPageID is the id of the first page of a reply slot of a valid
// client.
func (m *Manager) ReplyFirstPageID(clientID, indexInBatch uint16) uint32 {
	return m.KeyPageID(clientID) + 1 + uint32(indexInBatch)*m.pagesPerRequest
}

// saveReplyPages writes an encoded reply into its slot. Every page of the
// slot is written so that the content of the slot depends only on the
// reply.
func (m *Manager) saveReplyPages(clientID, indexInBatch uint16, encoded []byte) error {
	pageSize := m.region.PageSize()
	first := m.ReplyFirstPageID(clientID, indexInBatch)
	for i := uint32(0); i < m.pagesPerRequest; i++ {
		var chunk []byte
		if start := i * pageSize; start < uint32(len(encoded)) {
			end := start + pageSize
			if end > uint32(len(encoded)) {
				end = uint32(len(encoded))
			}
			chunk = encoded[start:end]
		}
		if err := m.region.SavePage(first+i, chunk); err != nil {
			return errors.WithMessagef(err, "failed saving reply of client %d at index %d", clientID, indexInBatch)
		}
	}
	return nil
}

// loadReplyPages reads the reply held by a slot. found is false when the
// slot was never written.
func (m *Manager) loadReplyPages(clientID, indexInBatch uint16) (*msgs.ClientReplyMsg, bool, error) {
	first := m.ReplyFirstPageID(clientID, indexInBatch)
	page, _, err := m.region.LoadPage(first)
	if err != nil {
		return nil, false, err
	}
	if msgs.IsEmptyReply(page) {
		return nil, false, nil
	}

	buf := make([]byte, 0, m.pagesPerRequest*m.region.PageSize())
	buf = append(buf, page...)
	for i := uint32(1); i < m.pagesPerRequest; i++ {
		page, _, err := m.region.LoadPage(first + i)
		if err != nil {
			return nil, false, err
		}
		buf = append(buf, page...)
	}

	msg := &msgs.ClientReplyMsg{ClientID: clientID}
	if err := msg.UnmarshalBinary(buf); err != nil {
		return nil, false, errors.WithMessagef(err, "malformed reply of client %d at index %d", clientID, indexInBatch)
	}
	return msg, true, nil
}

// AllocateNewReply builds the reply to an executed request, persists it in
// the slot of reqIndexInBatch and indexes it. The oldest reply of the client
// is evicted first when the client already holds the maximum number of
// replies.
func (m *Manager) AllocateNewReply(clientID uint16, reqSeqNum uint64, currentPrimaryID uint16, reply []byte, reqIndexInBatch uint16, rsiLength, result uint32) (*msgs.ClientReplyMsg, error) {
	ci, ok := m.clients[clientID]
	if !ok {
		return nil, errors.Errorf("client %d is not a valid client", clientID)
	}
	if reqIndexInBatch >= m.maxReqsPerClient {
		return nil, errors.Errorf("index in batch %d is outside of the client batch of %d", reqIndexInBatch, m.maxReqsPerClient)
	}

	msg := &msgs.ClientReplyMsg{
		ClientID:                  clientID,
		ReqSeqNum:                 reqSeqNum,
		CurrentPrimaryID:          currentPrimaryID,
		Result:                    result,
		ReplicaSpecificInfoLength: rsiLength,
		Reply:                     append([]byte(nil), reply...),
	}
	encoded, err := msg.MarshalBinary()
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid reply to client %d for request %d", clientID, reqSeqNum)
	}
	if uint32(len(encoded)) > m.maxReplySize {
		return nil, errors.Errorf("reply to client %d for request %d is %d bytes, exceeds max reply size %d", clientID, reqSeqNum, len(encoded), m.maxReplySize)
	}

	if err := m.saveReplyPages(clientID, reqIndexInBatch, encoded); err != nil {
		return nil, err
	}

	m.evictOldestReplyIfFull(clientID, ci, reqSeqNum, reqIndexInBatch)

	if superseded, ok := ci.replies.insertOrAssign(reqSeqNum, reqIndexInBatch); ok {
		m.logger.Debugw("Reply superseded", "clientID", clientID, "reqSeqNum", superseded, "indexInBatch", reqIndexInBatch)
	}
	if n := ci.replies.size(); n > int(m.maxReqsPerClient) {
		m.logger.Panicf("Client %d holds %d replies, more than the maximum of %d", clientID, n, m.maxReqsPerClient)
	}

	m.logger.Debugw("Allocated new reply", "clientID", clientID, "reqSeqNum", reqSeqNum, "indexInBatch", reqIndexInBatch, "size", len(encoded))
	return msg, nil
}

// evictOldestReplyIfFull drops the oldest reply of a client holding the
// maximum number of replies, unless slot already holds reqSeqNum.
func (m *Manager) evictOldestReplyIfFull(clientID uint16, ci *clientInfo, reqSeqNum uint64, slot uint16) {
	if ci.replies.size() < int(m.maxReqsPerClient) || ci.replies.holds(reqSeqNum, slot) {
		return
	}
	if oldest, ok := ci.replies.deleteOldest(); ok {
		m.logger.Debugw("Evicted oldest reply", "clientID", clientID, "reqSeqNum", oldest.ReqSeqNum, "indexInBatch", oldest.IndexInBatch)
	}
}

// AllocateReplyFromPersisted loads the reply to a request from reserved
// pages. A mismatching slot yields no reply when client batching is on,
// and ErrReplyInconsistency otherwise.
func (m *Manager) AllocateReplyFromPersisted(clientID uint16, reqSeqNum uint64, currentPrimaryID uint16) (*msgs.ClientReplyMsg, error) {
	ci, ok := m.clients[clientID]
	if !ok {
		return nil, errors.Errorf("client %d is not a valid client", clientID)
	}

	slot, _ := ci.replies.slotOf(reqSeqNum)
	msg, found, err := m.loadReplyPages(clientID, slot)
	if err != nil {
		return nil, err
	}

	if !found || msg.ReqSeqNum != reqSeqNum {
		var persisted uint64
		if found {
			persisted = msg.ReqSeqNum
		}
		if m.maxReqsPerClient > 1 {
			m.logger.Debugw("No persisted reply for request", "clientID", clientID, "reqSeqNum", reqSeqNum, "indexInBatch", slot, "persistedReqSeqNum", persisted)
			return nil, nil
		}
		m.metrics.ReplyInconsistencyDetected.Add(1)
		m.logger.Errorw("Persisted reply does not match the request", "clientID", clientID, "reqSeqNum", reqSeqNum, "persistedReqSeqNum", persisted)
		return nil, errors.Wrapf(ErrReplyInconsistency, "client %d request %d, persisted reply is for request %d", clientID, reqSeqNum, persisted)
	}

	msg.CurrentPrimaryID = currentPrimaryID
	return msg, nil
}

// DeleteReplyIfNeeded drops the reply indexed at a slot before the slot is
// reused for newReqSeqNum.
func (m *Manager) DeleteReplyIfNeeded(clientID, indexInBatch uint16, newReqSeqNum uint64) {
	ci, ok := m.client(clientID, "DeleteReplyIfNeeded")
	if !ok {
		return
	}
	if deleted, ok := ci.replies.deleteSlot(indexInBatch); ok {
		m.logger.Debugw("Deleted reply", "clientID", clientID, "reqSeqNum", deleted, "indexInBatch", indexInBatch, "newReqSeqNum", newReqSeqNum)
	}
}

// LoadInfoFromReservedPages rebuilds the keys and reply index of every
// client from reserved pages, and drops pending requests already answered
// by a persisted reply.
func (m *Manager) LoadInfoFromReservedPages() error {
	for _, clientID := range m.registry.clientIDs {
		ci := m.clients[clientID]

		if err := m.loadPublicKeyPage(clientID, ci); err != nil {
			return err
		}

		for slot := uint16(0); slot < m.maxReqsPerClient; slot++ {
			msg, found, err := m.loadReplyPages(clientID, slot)
			if err != nil {
				return err
			}
			if !found {
				continue
			}

			m.evictOldestReplyIfFull(clientID, ci, msg.ReqSeqNum, slot)
			ci.replies.insertOrAssign(msg.ReqSeqNum, slot)

			if removed := ci.requests.removeUpTo(msg.ReqSeqNum); removed > 0 {
				m.addPending(-int64(removed))
				m.logger.Debugw("Removed requests answered by a persisted reply", "clientID", clientID, "reqSeqNum", msg.ReqSeqNum, "removed", removed)
			}
		}
	}

	m.logger.Infof("Loaded clients info from %d reserved pages", m.region.NumPages())
	return nil
}
