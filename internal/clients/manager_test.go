/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package clients_test

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/hyperledger-labs/bftclients/common/metrics/metricsfakes"
	"github.com/hyperledger-labs/bftclients/internal/clients"
	"github.com/hyperledger-labs/bftclients/internal/clients/mock"
	"github.com/hyperledger-labs/bftclients/internal/keyexchange"
	"github.com/hyperledger-labs/bftclients/internal/respages"
	respagesmock "github.com/hyperledger-labs/bftclients/internal/respages/mock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const pageSize = 4096

var startTime = time.Unix(1700000000, 0)

type fixture struct {
	manager      *clients.Manager
	store        respages.Store
	keyExchanger *mock.KeyExchanger
	clock        *fakeclock.FakeClock

	inconsistencies *metricsfakes.Counter
	outOfBounds     *metricsfakes.Counter
	pending         *metricsfakes.Gauge
}

func newFixture(t *testing.T, conf clients.Config, store respages.Store) *fixture {
	t.Helper()

	f := &fixture{
		store:           store,
		keyExchanger:    &mock.KeyExchanger{},
		clock:           fakeclock.NewFakeClock(startTime),
		inconsistencies: &metricsfakes.Counter{},
		outOfBounds:     &metricsfakes.Counter{},
		pending:         &metricsfakes.Gauge{},
	}

	m, err := clients.New(conf, clients.Dependencies{
		Reserver:     respages.NewReserver(store),
		KeyExchanger: f.keyExchanger,
		Metrics: &clients.Metrics{
			ReplyInconsistencyDetected:  f.inconsistencies,
			RemovedDueToOutOfBoundaries: f.outOfBounds,
			PendingRequests:             f.pending,
		},
		Clock: f.clock,
	})
	require.NoError(t, err)
	f.manager = m
	return f
}

func config(maxReqsPerClient uint16, ids ...uint16) clients.Config {
	return clients.Config{
		MaxReplySize:     8192,
		MaxReqsPerClient: maxReqsPerClient,
		ProxyClients:     ids,
	}
}

func TestNewErrors(t *testing.T) {
	reserver := respages.NewReserver(respages.NewMemStore(pageSize))
	kx := &mock.KeyExchanger{}

	tests := []struct {
		name   string
		conf   clients.Config
		deps   clients.Dependencies
		errMsg string
	}{
		{
			name:   "no reserver",
			conf:   config(1, 1),
			deps:   clients.Dependencies{KeyExchanger: kx},
			errMsg: "a page reserver is required",
		},
		{
			name:   "no key exchanger",
			conf:   config(1, 1),
			deps:   clients.Dependencies{Reserver: reserver},
			errMsg: "a key exchanger is required",
		},
		{
			name:   "zero batch",
			conf:   config(0, 1),
			deps:   clients.Dependencies{Reserver: reserver, KeyExchanger: kx},
			errMsg: "max requests per client must be positive",
		},
		{
			name:   "tiny replies",
			conf:   clients.Config{MaxReplySize: 10, MaxReqsPerClient: 1, ProxyClients: []uint16{1}},
			deps:   clients.Dependencies{Reserver: reserver, KeyExchanger: kx},
			errMsg: "max reply size 10 is smaller than the 24 byte reply header",
		},
		{
			name:   "no clients",
			conf:   config(1),
			deps:   clients.Dependencies{Reserver: reserver, KeyExchanger: kx},
			errMsg: "no clients configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := clients.New(tt.conf, tt.deps)
			require.EqualError(t, err, tt.errMsg)
		})
	}
}

func TestNewReservesPagesOnce(t *testing.T) {
	reserver := respages.NewReserver(respages.NewMemStore(pageSize))
	deps := clients.Dependencies{Reserver: reserver, KeyExchanger: &mock.KeyExchanger{}}

	_, err := clients.New(config(1, 1), deps)
	require.NoError(t, err)

	_, err = clients.New(config(1, 1), deps)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed reserving pages for clients")
}

func TestLayout(t *testing.T) {
	require.Equal(t, uint32(1), clients.ReservedPagesPerRequest(4096, 4096))
	require.Equal(t, uint32(2), clients.ReservedPagesPerRequest(4096, 4097))
	require.Equal(t, uint32(7), clients.ReservedPagesPerClient(4096, 8192, 3))

	f := newFixture(t, config(1, 101, 100), respages.NewMemStore(pageSize))
	m := f.manager

	require.Equal(t, uint32(2), m.PagesPerRequest())
	require.Equal(t, uint32(3), m.PagesPerClient())
	require.Equal(t, uint32(6), m.NumberOfRequiredReservedPages())
	require.Equal(t, []uint16{100, 101}, m.ClientIDs())
	require.Equal(t, uint32(0), m.KeyPageID(100))
	require.Equal(t, uint32(1), m.ReplyFirstPageID(100, 0))
	require.Equal(t, uint32(3), m.KeyPageID(101))
	require.Equal(t, uint32(4), m.ReplyFirstPageID(101, 0))

	f = newFixture(t, config(3, 100, 101), respages.NewMemStore(pageSize))
	require.Equal(t, uint32(7), f.manager.PagesPerClient())
	require.Equal(t, uint32(7+1+2*2), f.manager.ReplyFirstPageID(101, 2))
}

func TestPendingRequests(t *testing.T) {
	f := newFixture(t, config(2, 1, 2), respages.NewMemStore(pageSize))
	m := f.manager

	require.True(t, m.CanBecomePending(1, 10))
	require.True(t, m.AddPendingRequest(1, 10, "cid-10"))
	require.False(t, m.CanBecomePending(1, 10))
	require.False(t, m.AddPendingRequest(1, 10, "cid-10"))
	require.True(t, m.IsPending(1, 10))
	require.True(t, m.IsClientRequestInProcess(1, 10))

	require.True(t, m.AddPendingRequest(1, 11, "cid-11"))
	require.False(t, m.CanBecomePending(1, 12))
	require.False(t, m.AddPendingRequest(1, 12, "cid-12"))
	require.True(t, m.CanBecomePending(2, 12))

	m.MarkRequestAsCommitted(1, 10)
	require.False(t, m.IsPending(1, 10))
	require.True(t, m.IsClientRequestInProcess(1, 10))
	require.False(t, m.AddPendingRequest(1, 10, "cid-10"))
	require.False(t, m.IsPending(1, 10), "a committed request stays committed")

	m.RemovePendingForExecutionRequest(1, 10)
	require.False(t, m.IsClientRequestInProcess(1, 10))
	require.True(t, m.CanBecomePending(1, 12))

	m.ClearAllPendingRequests()
	require.False(t, m.IsClientRequestInProcess(1, 11))

	require.Equal(t, 5, f.pending.SetCallCount())
	for i, expected := range []float64{0, 1, 2, 1, 0} {
		require.Equal(t, expected, f.pending.SetArgsForCall(i))
	}
}

func TestInvalidClient(t *testing.T) {
	f := newFixture(t, config(1, 1), respages.NewMemStore(pageSize))
	m := f.manager

	require.False(t, m.IsValidClient(9))
	require.False(t, m.CanBecomePending(9, 1))
	require.False(t, m.AddPendingRequest(9, 1, "cid"))
	require.False(t, m.IsPending(9, 1))
	require.False(t, m.HasReply(9, 1))
	m.MarkRequestAsCommitted(9, 1)
	m.RemoveRequestsOutOfBatchBounds(9, 1)
	m.RemovePendingForExecutionRequest(9, 1)
	m.DeleteReplyIfNeeded(9, 0, 1)

	_, err := m.AllocateNewReply(9, 1, 0, []byte("r"), 0, 0, 0)
	require.EqualError(t, err, "client 9 is not a valid client")
	_, err = m.AllocateReplyFromPersisted(9, 1, 0)
	require.EqualError(t, err, "client 9 is not a valid client")
	require.EqualError(t, m.SetClientPublicKey(9, "key", keyexchange.HexKeyFormat), "client 9 is not a valid client")

	_, ok := m.Summary(9)
	require.False(t, ok)
	require.Equal(t, 1, f.pending.SetCallCount())
}

func TestRemoveRequestsOutOfBatchBounds(t *testing.T) {
	f := newFixture(t, config(3, 1), respages.NewMemStore(pageSize))
	m := f.manager

	for _, seq := range []uint64{5, 6, 9} {
		require.True(t, m.AddPendingRequest(1, seq, ""))
	}

	m.RemoveRequestsOutOfBatchBounds(1, 6)
	m.RemoveRequestsOutOfBatchBounds(1, 10)
	require.Zero(t, f.outOfBounds.AddCallCount())

	m.RemoveRequestsOutOfBatchBounds(1, 7)
	require.False(t, m.IsClientRequestInProcess(1, 9))
	require.True(t, m.IsClientRequestInProcess(1, 5))
	require.True(t, m.IsClientRequestInProcess(1, 6))
	require.Equal(t, 1, f.outOfBounds.AddCallCount())
	require.Equal(t, float64(1), f.outOfBounds.AddArgsForCall(0))

	// not a full batch anymore
	m.RemoveRequestsOutOfBatchBounds(1, 4)
	require.Equal(t, 1, f.outOfBounds.AddCallCount())
}

func TestRemoveRequestsOutOfBatchBoundsEvictsNewest(t *testing.T) {
	f := newFixture(t, config(2, 1), respages.NewMemStore(pageSize))
	m := f.manager

	m.AddPendingRequest(1, 5, "")
	m.AddPendingRequest(1, 7, "")
	m.RemoveRequestsOutOfBatchBounds(1, 3)

	require.True(t, m.IsClientRequestInProcess(1, 5))
	require.False(t, m.IsClientRequestInProcess(1, 7))
	s, _ := m.Summary(1)
	require.Equal(t, 1, s.PendingRequests)
}

func TestRemoveRequestsOutOfBatchBoundsSystemBatch(t *testing.T) {
	conf := config(3, 1)
	conf.MaxRequestsInBatch = 2
	f := newFixture(t, conf, respages.NewMemStore(pageSize))
	m := f.manager

	m.AddPendingRequest(1, 5, "")
	m.AddPendingRequest(1, 9, "")
	m.RemoveRequestsOutOfBatchBounds(1, 7)
	require.False(t, m.IsClientRequestInProcess(1, 9))
	require.Equal(t, 1, f.outOfBounds.AddCallCount())
}

func TestInfoOfEarliestPendingRequest(t *testing.T) {
	f := newFixture(t, config(2, 1, 2), respages.NewMemStore(pageSize))
	m := f.manager

	at, cid := m.InfoOfEarliestPendingRequest()
	require.Equal(t, clients.MaxTime, at)
	require.Empty(t, cid)

	m.AddPendingRequest(2, 1, "first")
	f.clock.Increment(time.Second)
	m.AddPendingRequest(1, 1, "second")

	at, cid = m.InfoOfEarliestPendingRequest()
	require.Equal(t, startTime, at)
	require.Equal(t, "first", cid)

	m.MarkRequestAsCommitted(2, 1)
	at, cid = m.InfoOfEarliestPendingRequest()
	require.Equal(t, startTime.Add(time.Second), at)
	require.Equal(t, "second", cid)

	m.MarkRequestAsCommitted(1, 1)
	at, cid = m.InfoOfEarliestPendingRequest()
	require.Equal(t, clients.MaxTime, at)
	require.Empty(t, cid)
}

func TestLogAllPendingRequestsExceedingThreshold(t *testing.T) {
	f := newFixture(t, config(3, 1), respages.NewMemStore(pageSize))
	m := f.manager

	m.AddPendingRequest(1, 1, "old")
	f.clock.Increment(5 * time.Second)
	m.AddPendingRequest(1, 2, "new")
	m.AddPendingRequest(1, 3, "committed")
	m.MarkRequestAsCommitted(1, 3)

	require.Equal(t, 1, m.LogAllPendingRequestsExceedingThreshold(3*time.Second, f.clock.Now()))
	require.Equal(t, 0, m.LogAllPendingRequestsExceedingThreshold(10*time.Second, f.clock.Now()))
	require.Equal(t, 2, m.LogAllPendingRequestsExceedingThreshold(time.Second, f.clock.Now().Add(time.Minute)))
}

func TestAllocateNewReplySupersedes(t *testing.T) {
	conf := config(1, 1)
	conf.MaxReplySize = 64
	f := newFixture(t, conf, respages.NewMemStore(pageSize))
	m := f.manager

	msg, err := m.AllocateNewReply(1, 10, 0, []byte("ten"), 0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(10), msg.ReqSeqNum)
	require.True(t, m.HasReply(1, 10))
	require.False(t, m.CanBecomePending(1, 10))

	_, err = m.AllocateNewReply(1, 11, 2, []byte("eleven-rsi"), 0, 3, 7)
	require.NoError(t, err)
	require.False(t, m.HasReply(1, 10))
	require.True(t, m.HasReply(1, 11))

	persisted, err := m.AllocateReplyFromPersisted(1, 11, 3)
	require.NoError(t, err)
	require.Equal(t, uint16(1), persisted.ClientID)
	require.Equal(t, uint64(11), persisted.ReqSeqNum)
	require.Equal(t, uint16(3), persisted.CurrentPrimaryID)
	require.Equal(t, uint32(7), persisted.Result)
	require.Equal(t, []byte("eleven-rsi"), persisted.Reply)
	require.Equal(t, []byte("rsi"), persisted.ReplicaSpecificInfo())
}

func TestAllocateNewReplyEvictsOldest(t *testing.T) {
	f := newFixture(t, config(2, 1), respages.NewMemStore(pageSize))
	m := f.manager

	_, err := m.AllocateNewReply(1, 5, 0, []byte("5"), 0, 0, 0)
	require.NoError(t, err)
	_, err = m.AllocateNewReply(1, 7, 0, []byte("7"), 1, 0, 0)
	require.NoError(t, err)

	_, err = m.AllocateNewReply(1, 9, 0, []byte("9"), 0, 0, 0)
	require.NoError(t, err)
	require.False(t, m.HasReply(1, 5))
	require.True(t, m.HasReply(1, 7))
	require.True(t, m.HasReply(1, 9))

	s, ok := m.Summary(1)
	require.True(t, ok)
	require.Equal(t, []clients.ReplyRef{{ReqSeqNum: 9, IndexInBatch: 0}, {ReqSeqNum: 7, IndexInBatch: 1}}, s.Replies)
}

func TestAllocateNewReplyErrors(t *testing.T) {
	conf := config(2, 1)
	conf.MaxReplySize = 64
	f := newFixture(t, conf, respages.NewMemStore(pageSize))
	m := f.manager

	_, err := m.AllocateNewReply(1, 1, 0, []byte("r"), 2, 0, 0)
	require.EqualError(t, err, "index in batch 2 is outside of the client batch of 2")

	_, err = m.AllocateNewReply(1, 1, 0, []byte("r"), 0, 2, 0)
	require.EqualError(t, err, "invalid reply to client 1 for request 1: replica specific info length 2 exceeds reply length 1")

	_, err = m.AllocateNewReply(1, 1, 0, bytes.Repeat([]byte("x"), 41), 0, 0, 0)
	require.EqualError(t, err, "reply to client 1 for request 1 is 65 bytes, exceeds max reply size 64")

	_, err = m.AllocateNewReply(1, 1, 0, bytes.Repeat([]byte("x"), 40), 0, 0, 0)
	require.NoError(t, err)
	require.True(t, m.HasReply(1, 1))
}

func TestAllocateNewReplyWriteFailure(t *testing.T) {
	store := &respagesmock.Store{}
	store.PageSizeReturns(pageSize)
	store.WritePageReturns(errors.New("disk full"))
	f := newFixture(t, config(1, 1), store)

	_, err := f.manager.AllocateNewReply(1, 3, 0, []byte("r"), 0, 0, 0)
	require.EqualError(t, err, "failed saving reply of client 1 at index 0: failed writing page 1 of clients-manager: disk full")
	require.False(t, f.manager.HasReply(1, 3))
}

func TestAllocateReplyFromPersistedMismatch(t *testing.T) {
	f := newFixture(t, config(1, 1), respages.NewMemStore(pageSize))
	m := f.manager

	_, err := m.AllocateNewReply(1, 10, 0, []byte("ten"), 0, 0, 0)
	require.NoError(t, err)

	_, err = m.AllocateReplyFromPersisted(1, 11, 0)
	require.Equal(t, clients.ErrReplyInconsistency, errors.Cause(err))
	require.EqualError(t, err, "client 1 request 11, persisted reply is for request 10: persisted reply does not match the request")
	require.Equal(t, 1, f.inconsistencies.AddCallCount())
	require.Equal(t, float64(1), f.inconsistencies.AddArgsForCall(0))
}

func TestAllocateReplyFromPersistedBatching(t *testing.T) {
	f := newFixture(t, config(4, 1), respages.NewMemStore(pageSize))
	m := f.manager

	msg, err := m.AllocateReplyFromPersisted(1, 11, 0)
	require.NoError(t, err)
	require.Nil(t, msg)

	_, err = m.AllocateNewReply(1, 10, 0, []byte("ten"), 0, 0, 0)
	require.NoError(t, err)
	msg, err = m.AllocateReplyFromPersisted(1, 11, 0)
	require.NoError(t, err)
	require.Nil(t, msg)
	require.Zero(t, f.inconsistencies.AddCallCount())
}

func TestDeleteReplyIfNeeded(t *testing.T) {
	f := newFixture(t, config(2, 1), respages.NewMemStore(pageSize))
	m := f.manager

	_, err := m.AllocateNewReply(1, 4, 0, []byte("four"), 1, 0, 0)
	require.NoError(t, err)

	m.DeleteReplyIfNeeded(1, 0, 5)
	require.True(t, m.HasReply(1, 4))
	m.DeleteReplyIfNeeded(1, 1, 5)
	require.False(t, m.HasReply(1, 4))
}

func TestClientPublicKey(t *testing.T) {
	f := newFixture(t, config(1, 1, 2), respages.NewMemStore(pageSize))
	m := f.manager

	_, ok := m.ClientPublicKey(1)
	require.False(t, ok)

	require.NoError(t, m.SetClientPublicKey(1, "abcdef", keyexchange.HexKeyFormat))
	key, ok := m.ClientPublicKey(1)
	require.True(t, ok)
	require.Equal(t, keyexchange.PublicKey{Key: "abcdef", Format: keyexchange.HexKeyFormat}, key)

	require.EqualError(t, m.SetClientPublicKey(2, "", keyexchange.HexKeyFormat), "empty public key for client 2")
	err := m.SetClientPublicKey(2, string(bytes.Repeat([]byte("k"), pageSize)), keyexchange.PemKeyFormat)
	require.EqualError(t, err, "public key of client 2 is 4096 bytes, exceeds the 4091 bytes a key page holds")

	s, ok := m.Summary(1)
	require.True(t, ok)
	require.Equal(t, uint16(1), s.ClientID)
	require.Equal(t, &key, s.PublicKey)
	require.Zero(t, f.keyExchanger.LoadClientPublicKeyCallCount())
}

func TestLoadInfoFromReservedPages(t *testing.T) {
	path := t.TempDir()
	conf := config(2, 1, 2)

	store, err := respages.OpenLevelDBStore(path, pageSize, true)
	require.NoError(t, err)
	f := newFixture(t, conf, store)
	require.NoError(t, f.manager.SetClientPublicKey(2, "0a0b", keyexchange.HexKeyFormat))
	_, err = f.manager.AllocateNewReply(1, 7, 0, []byte("seven"), 0, 0, 0)
	require.NoError(t, err)
	_, err = f.manager.AllocateNewReply(1, 8, 0, bytes.Repeat([]byte("8"), 5000), 1, 0, 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = respages.OpenLevelDBStore(path, pageSize, true)
	require.NoError(t, err)
	defer store.Close()
	f = newFixture(t, conf, store)
	m := f.manager

	require.True(t, m.AddPendingRequest(1, 8, "answered"))
	require.True(t, m.AddPendingRequest(1, 12, "open"))

	require.NoError(t, m.LoadInfoFromReservedPages())

	require.True(t, m.HasReply(1, 7))
	require.True(t, m.HasReply(1, 8))
	require.False(t, m.IsClientRequestInProcess(1, 8))
	require.True(t, m.IsClientRequestInProcess(1, 12))

	msg, err := m.AllocateReplyFromPersisted(1, 8, 1)
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte("8"), 5000), msg.Reply)

	key, ok := m.ClientPublicKey(2)
	require.True(t, ok)
	require.Equal(t, "0a0b", key.Key)
	require.Equal(t, 1, f.keyExchanger.LoadClientPublicKeyCallCount())
	clientID, pushed := f.keyExchanger.LoadClientPublicKeyArgsForCall(0)
	require.Equal(t, uint16(2), clientID)
	require.Equal(t, key, pushed)

	require.NoError(t, m.LoadInfoFromReservedPages())
	s, _ := m.Summary(1)
	require.Equal(t, []clients.ReplyRef{{ReqSeqNum: 7, IndexInBatch: 0}, {ReqSeqNum: 8, IndexInBatch: 1}}, s.Replies)
	require.Equal(t, 1, s.PendingRequests)
}

func TestLoadInfoFromReservedPagesMalformedKey(t *testing.T) {
	store := respages.NewMemStore(pageSize)
	f := newFixture(t, config(1, 1, 2), store)

	require.NoError(t, store.WritePage(f.manager.KeyPageID(2), []byte{0xff, 0xff, 0xff, 0xff}))
	err := f.manager.LoadInfoFromReservedPages()
	require.EqualError(t, err, "malformed public key page of client 2: key length 4294967295 exceeds the 4091 available bytes")
}

func TestConcurrentInspection(t *testing.T) {
	f := newFixture(t, config(4, 1), respages.NewMemStore(pageSize))
	m := f.manager

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				m.HasReply(1, 3)
				m.IsPending(1, 3)
				m.IsClientRequestInProcess(1, 3)
			}
		}()
	}

	for seq := uint64(1); seq <= 100; seq++ {
		slot := uint16(seq % 4)
		m.AddPendingRequest(1, seq, "")
		m.MarkRequestAsCommitted(1, seq)
		_, err := m.AllocateNewReply(1, seq, 0, []byte("r"), slot, 0, 0)
		require.NoError(t, err)
		m.RemovePendingForExecutionRequest(1, seq)
	}
	close(stop)
	wg.Wait()

	s, _ := m.Summary(1)
	require.Len(t, s.Replies, 4)
	require.True(t, m.HasReply(1, 100))
}
