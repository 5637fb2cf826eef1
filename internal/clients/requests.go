/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package clients

import (
	"sync"
	"time"
)

type requestInfo struct {
	time      time.Time
	cid       string
	committed bool
}

// requestsInfo holds the requests of one client that are being processed.
// The mutex separates the read-only pre-processing path from the main
// execution path; the latter never races with itself.
type requestsInfo struct {
	mutex    sync.RWMutex
	requests map[uint64]*requestInfo
}

func newRequestsInfo() *requestsInfo {
	return &requestsInfo{requests: map[uint64]*requestInfo{}}
}

func (r *requestsInfo) size() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.requests)
}

func (r *requestsInfo) find(reqSeqNum uint64) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.requests[reqSeqNum]
	return ok
}

func (r *requestsInfo) isPending(reqSeqNum uint64) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	req, ok := r.requests[reqSeqNum]
	return ok && !req.committed
}

// emplace adds a request unless one with the same sequence number exists or
// the client already has limit requests.
func (r *requestsInfo) emplace(reqSeqNum uint64, cid string, now time.Time, limit int) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.requests[reqSeqNum]; ok {
		return false
	}
	if len(r.requests) >= limit {
		return false
	}
	r.requests[reqSeqNum] = &requestInfo{time: now, cid: cid}
	return true
}

func (r *requestsInfo) markCommitted(reqSeqNum uint64) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	req, ok := r.requests[reqSeqNum]
	if !ok {
		return false
	}
	req.committed = true
	return true
}

// removeOutOfBatchBounds drops the request with the greatest sequence number
// when the client holds exactly maxInBatch requests, none of them is
// reqSeqNum and the greatest one is above reqSeqNum.
func (r *requestsInfo) removeOutOfBatchBounds(reqSeqNum uint64, maxInBatch int) (uint64, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if len(r.requests) != maxInBatch {
		return 0, false
	}
	if _, ok := r.requests[reqSeqNum]; ok {
		return 0, false
	}

	var newest uint64
	for seq := range r.requests {
		if seq > newest {
			newest = seq
		}
	}
	if newest <= reqSeqNum {
		return 0, false
	}

	delete(r.requests, newest)
	return newest, true
}

func (r *requestsInfo) remove(reqSeqNum uint64) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.requests[reqSeqNum]; !ok {
		return false
	}
	delete(r.requests, reqSeqNum)
	return true
}

// removeUpTo drops every request with a sequence number of at most
// reqSeqNum and returns how many were dropped.
func (r *requestsInfo) removeUpTo(reqSeqNum uint64) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := 0
	for seq := range r.requests {
		if seq <= reqSeqNum {
			delete(r.requests, seq)
			removed++
		}
	}
	return removed
}

func (r *requestsInfo) clear() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	n := len(r.requests)
	r.requests = map[uint64]*requestInfo{}
	return n
}

// earliestPending returns the arrival time and cid of the oldest request
// that is not committed yet.
func (r *requestsInfo) earliestPending() (time.Time, string, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var (
		earliest *requestInfo
		found    bool
	)
	for _, req := range r.requests {
		if req.committed {
			continue
		}
		if !found || req.time.Before(earliest.time) {
			earliest = req
			found = true
		}
	}
	if !found {
		return time.Time{}, "", false
	}
	return earliest.time, earliest.cid, true
}

// pendingOlderThan calls fn for every uncommitted request that arrived more
// than threshold before now, and returns how many there were.
func (r *requestsInfo) pendingOlderThan(threshold time.Duration, now time.Time, fn func(reqSeqNum uint64, cid string, age time.Duration)) int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	n := 0
	for seq, req := range r.requests {
		if req.committed {
			continue
		}
		if age := now.Sub(req.time); age > threshold {
			fn(seq, req.cid, age)
			n++
		}
	}
	return n
}
