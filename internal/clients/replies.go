/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package clients

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// ReplyRef locates a persisted reply of a client.
type ReplyRef struct {
	ReqSeqNum    uint64
	IndexInBatch uint16
}

// repliesInfo indexes the persisted replies of one client. Every index in
// batch holds at most one reply: slots[i] is the sequence number held by
// slot i when occupied.Test(i), and bySeq is its inverse. Both are updated
// only by set and unset.
type repliesInfo struct {
	mutex    sync.RWMutex
	slots    []uint64
	occupied *bitset.BitSet
	bySeq    map[uint64]uint16
}

func newRepliesInfo(maxReqsPerClient uint16) *repliesInfo {
	return &repliesInfo{
		slots:    make([]uint64, maxReqsPerClient),
		occupied: bitset.New(uint(maxReqsPerClient)),
		bySeq:    map[uint64]uint16{},
	}
}

func (r *repliesInfo) set(reqSeqNum uint64, slot uint16) {
	r.slots[slot] = reqSeqNum
	r.occupied.Set(uint(slot))
	r.bySeq[reqSeqNum] = slot
}

func (r *repliesInfo) unset(slot uint16) uint64 {
	reqSeqNum := r.slots[slot]
	r.occupied.Clear(uint(slot))
	r.slots[slot] = 0
	delete(r.bySeq, reqSeqNum)
	return reqSeqNum
}

func (r *repliesInfo) size() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.bySeq)
}

func (r *repliesInfo) find(reqSeqNum uint64) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.bySeq[reqSeqNum]
	return ok
}

func (r *repliesInfo) slotOf(reqSeqNum uint64) (uint16, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	slot, ok := r.bySeq[reqSeqNum]
	return slot, ok
}

// holds reports whether slot already holds reqSeqNum.
func (r *repliesInfo) holds(reqSeqNum uint64, slot uint16) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	s, ok := r.bySeq[reqSeqNum]
	return ok && s == slot
}

// insertOrAssign records reqSeqNum at slot. A different reply already held
// by the slot is dropped and returned; a previous slot of reqSeqNum is
// released.
func (r *repliesInfo) insertOrAssign(reqSeqNum uint64, slot uint16) (superseded uint64, ok bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if prevSlot, exists := r.bySeq[reqSeqNum]; exists && prevSlot != slot {
		r.unset(prevSlot)
	}
	if r.occupied.Test(uint(slot)) && r.slots[slot] != reqSeqNum {
		superseded, ok = r.unset(slot), true
	}
	r.set(reqSeqNum, slot)
	return superseded, ok
}

// deleteSlot drops the reply held by slot, if any.
func (r *repliesInfo) deleteSlot(slot uint16) (uint64, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if int(slot) >= len(r.slots) || !r.occupied.Test(uint(slot)) {
		return 0, false
	}
	return r.unset(slot), true
}

// deleteOldest drops the reply with the lowest sequence number.
func (r *repliesInfo) deleteOldest() (ReplyRef, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var (
		oldest ReplyRef
		found  bool
	)
	for i, ok := r.occupied.NextSet(0); ok; i, ok = r.occupied.NextSet(i + 1) {
		if seq := r.slots[i]; !found || seq < oldest.ReqSeqNum {
			oldest = ReplyRef{ReqSeqNum: seq, IndexInBatch: uint16(i)}
			found = true
		}
	}
	if !found {
		return ReplyRef{}, false
	}
	r.unset(oldest.IndexInBatch)
	return oldest, true
}

// refs returns the indexed replies ordered by index in batch.
func (r *repliesInfo) refs() []ReplyRef {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	refs := make([]ReplyRef, 0, len(r.bySeq))
	for i, ok := r.occupied.NextSet(0); ok; i, ok = r.occupied.NextSet(i + 1) {
		refs = append(refs, ReplyRef{ReqSeqNum: r.slots[i], IndexInBatch: uint16(i)})
	}
	return refs
}
