/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package clients keeps the per-client state of a replica: the requests in
// process, the replies already executed and persisted in reserved pages,
// and the public keys clients sign their requests with.
package clients

import (
	"math"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/hyperledger-labs/bftclients/common/flogging"
	"github.com/hyperledger-labs/bftclients/common/metrics/disabled"
	"github.com/hyperledger-labs/bftclients/internal/keyexchange"
	"github.com/hyperledger-labs/bftclients/internal/msgs"
	"github.com/hyperledger-labs/bftclients/internal/respages"
	"github.com/pkg/errors"
)

const reservedPagesOwner = "clients-manager"

// MaxTime is returned as the arrival time of the earliest pending request
// when there is none.
var MaxTime = time.Unix(1<<62, 0)

// ErrReplyInconsistency is returned when the persisted reply of a slot does
// not belong to the request it was loaded for.
var ErrReplyInconsistency = errors.New("persisted reply does not match the request")

var logger = flogging.MustGetLogger("bftclients.manager")

// PendingRequests exposes whether a request is waiting to be committed.
type PendingRequests interface {
	IsPending(clientID uint16, reqSeqNum uint64) bool
}

// ClientPublicKeyStore records client public keys.
type ClientPublicKeyStore interface {
	SetClientPublicKey(clientID uint16, key string, format keyexchange.KeyFormat) error
}

// RequestInspector is the read-only view used by pre-processing threads.
type RequestInspector interface {
	IsValidClient(clientID uint16) bool
	HasReply(clientID uint16, reqSeqNum uint64) bool
	IsClientRequestInProcess(clientID uint16, reqSeqNum uint64) bool
}

//go:generate counterfeiter -o mock/key_exchanger.go -fake-name KeyExchanger . KeyExchanger

// KeyExchanger is the key exchange subsystem that client keys are installed
// into once they are loaded from reserved pages.
type KeyExchanger interface {
	LoadClientPublicKey(clientID uint16, key keyexchange.PublicKey)
}

// PageReserver hands out reserved page regions.
type PageReserver interface {
	PageSize() uint32
	Reserve(owner string, numPages uint32) (*respages.Region, error)
}

var (
	_ PendingRequests      = (*Manager)(nil)
	_ ClientPublicKeyStore = (*Manager)(nil)
	_ RequestInspector     = (*Manager)(nil)
)

// Config is the configuration of a Manager.
type Config struct {
	// MaxReplySize bounds the encoded size of a reply.
	MaxReplySize uint32
	// MaxReqsPerClient is the client batch size, 1 when client batching is
	// disabled. It bounds the pending requests and the replies of a client.
	MaxReqsPerClient uint16
	// MaxRequestsInBatch is the number of pending requests of a client at
	// which requests outside of a batch are dropped. Zero means
	// MaxReqsPerClient.
	MaxRequestsInBatch uint16

	ProxyClients    []uint16
	ExternalClients []uint16
	ClientServices  []uint16
	InternalClients []uint16
}

// Dependencies are the collaborators of a Manager. Reserver and
// KeyExchanger are required.
type Dependencies struct {
	Reserver     PageReserver
	KeyExchanger KeyExchanger
	Metrics      *Metrics
	Clock        clock.Clock
	Logger       *flogging.FabricLogger
}

type clientInfo struct {
	requests *requestsInfo
	replies  *repliesInfo
	keys     *publicKeyInfo
}

// Manager is the clients ledger of a replica.
//
// Mutating methods are called only from the main execution path. The
// RequestInspector methods may be called concurrently with them.
type Manager struct {
	registry *Registry
	clients  map[uint16]*clientInfo

	maxReplySize       uint32
	maxReqsPerClient   uint16
	maxRequestsInBatch uint16
	pagesPerRequest    uint32
	pagesPerClient     uint32

	region       *respages.Region
	keyExchanger KeyExchanger
	metrics      *Metrics
	clock        clock.Clock
	logger       *flogging.FabricLogger

	pending int64
}

// New creates a Manager and reserves the pages of every client.
func New(conf Config, deps Dependencies) (*Manager, error) {
	if deps.Reserver == nil {
		return nil, errors.New("a page reserver is required")
	}
	if deps.KeyExchanger == nil {
		return nil, errors.New("a key exchanger is required")
	}
	if conf.MaxReqsPerClient == 0 {
		return nil, errors.New("max requests per client must be positive")
	}
	if conf.MaxReplySize < msgs.ClientReplyHeaderSize {
		return nil, errors.Errorf("max reply size %d is smaller than the %d byte reply header", conf.MaxReplySize, msgs.ClientReplyHeaderSize)
	}
	pageSize := deps.Reserver.PageSize()
	if pageSize <= keyPageHeaderSize {
		return nil, errors.Errorf("page size %d cannot hold a public key", pageSize)
	}

	registry, err := NewRegistry(conf.ProxyClients, conf.ExternalClients, conf.ClientServices, conf.InternalClients)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		registry:           registry,
		clients:            make(map[uint16]*clientInfo, registry.Len()),
		maxReplySize:       conf.MaxReplySize,
		maxReqsPerClient:   conf.MaxReqsPerClient,
		maxRequestsInBatch: conf.MaxRequestsInBatch,
		pagesPerRequest:    ReservedPagesPerRequest(pageSize, conf.MaxReplySize),
		keyExchanger:       deps.KeyExchanger,
		metrics:            deps.Metrics,
		clock:              deps.Clock,
		logger:             deps.Logger,
	}
	if m.maxRequestsInBatch == 0 {
		m.maxRequestsInBatch = conf.MaxReqsPerClient
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(&disabled.Provider{})
	}
	if m.clock == nil {
		m.clock = clock.NewClock()
	}
	if m.logger == nil {
		m.logger = logger
	}
	m.pagesPerClient = ReservedPagesPerClient(pageSize, conf.MaxReplySize, conf.MaxReqsPerClient)

	total := uint64(m.pagesPerClient) * uint64(registry.Len())
	if total > math.MaxUint32 {
		return nil, errors.Errorf("%d clients need %d reserved pages, more than can be addressed", registry.Len(), total)
	}
	m.region, err = deps.Reserver.Reserve(reservedPagesOwner, uint32(total))
	if err != nil {
		return nil, errors.WithMessage(err, "failed reserving pages for clients")
	}

	for _, clientID := range registry.ClientIDs() {
		m.clients[clientID] = &clientInfo{
			requests: newRequestsInfo(),
			replies:  newRepliesInfo(conf.MaxReqsPerClient),
			keys:     &publicKeyInfo{},
		}
	}

	m.metrics.PendingRequests.Set(0)

	m.logger.Infof("Clients manager serves %d clients with %d reserved pages each, max reply size %d, max requests per client %d",
		registry.Len(), m.pagesPerClient, m.maxReplySize, m.maxReqsPerClient)

	return m, nil
}

// Registry returns the client categories the Manager was built with.
func (m *Manager) Registry() *Registry { return m.registry }

// ClientIDs returns every valid client id in ascending order.
func (m *Manager) ClientIDs() []uint16 { return m.registry.ClientIDs() }

// MaxReqsPerClient is the number of requests and replies kept per client.
func (m *Manager) MaxReqsPerClient() uint16 { return m.maxReqsPerClient }

func (m *Manager) IsValidClient(clientID uint16) bool { return m.registry.IsValidClient(clientID) }

func (m *Manager) IsInternal(clientID uint16) bool { return m.registry.IsInternal(clientID) }

// NumberOfRequiredReservedPages is the size of the reserved page region of
// the Manager.
func (m *Manager) NumberOfRequiredReservedPages() uint32 { return m.region.NumPages() }

// client returns the state of a valid client or logs the misuse.
func (m *Manager) client(clientID uint16, op string) (*clientInfo, bool) {
	ci, ok := m.clients[clientID]
	if !ok {
		m.logger.Warnw("Ignoring operation on unknown client", "op", op, "clientID", clientID)
	}
	return ci, ok
}

// CanBecomePending reports whether a new request from the client may be
// accepted: the client holds fewer than the maximum number of requests and
// no request or reply uses the same sequence number.
func (m *Manager) CanBecomePending(clientID uint16, reqSeqNum uint64) bool {
	ci, ok := m.clients[clientID]
	if !ok {
		return false
	}
	if ci.requests.size() >= int(m.maxReqsPerClient) {
		return false
	}
	return !ci.requests.find(reqSeqNum) && !ci.replies.find(reqSeqNum)
}

// IsPending reports whether the request is known and not yet committed.
func (m *Manager) IsPending(clientID uint16, reqSeqNum uint64) bool {
	ci, ok := m.clients[clientID]
	if !ok {
		return false
	}
	return ci.requests.isPending(reqSeqNum)
}

// IsClientRequestInProcess reports whether the request is known, committed
// or not.
func (m *Manager) IsClientRequestInProcess(clientID uint16, reqSeqNum uint64) bool {
	ci, ok := m.clients[clientID]
	if !ok {
		return false
	}
	return ci.requests.find(reqSeqNum)
}

// AddPendingRequest records a request arriving now. It is a no-op when the
// request is already known or the client holds the maximum number of
// requests.
func (m *Manager) AddPendingRequest(clientID uint16, reqSeqNum uint64, cid string) bool {
	ci, ok := m.client(clientID, "AddPendingRequest")
	if !ok {
		return false
	}
	if !ci.requests.emplace(reqSeqNum, cid, m.clock.Now(), int(m.maxReqsPerClient)) {
		m.logger.Debugw("Request not added", "clientID", clientID, "reqSeqNum", reqSeqNum, "cid", cid)
		return false
	}
	m.addPending(1)
	m.logger.Debugw("Added pending request", "clientID", clientID, "reqSeqNum", reqSeqNum, "cid", cid)
	return true
}

// MarkRequestAsCommitted flags a known request as committed.
func (m *Manager) MarkRequestAsCommitted(clientID uint16, reqSeqNum uint64) {
	ci, ok := m.client(clientID, "MarkRequestAsCommitted")
	if !ok {
		return
	}
	if !ci.requests.markCommitted(reqSeqNum) {
		m.logger.Debugw("Request to mark as committed not found", "clientID", clientID, "reqSeqNum", reqSeqNum)
		return
	}
	m.logger.Debugw("Marked request as committed", "clientID", clientID, "reqSeqNum", reqSeqNum)
}

// RemoveRequestsOutOfBatchBounds makes room for reqSeqNum when the client
// already holds a full batch of other requests, by dropping the request
// with the greatest sequence number if it is above reqSeqNum.
func (m *Manager) RemoveRequestsOutOfBatchBounds(clientID uint16, reqSeqNum uint64) {
	ci, ok := m.client(clientID, "RemoveRequestsOutOfBatchBounds")
	if !ok {
		return
	}
	removed, ok := ci.requests.removeOutOfBatchBounds(reqSeqNum, int(m.maxRequestsInBatch))
	if !ok {
		return
	}
	m.addPending(-1)
	m.metrics.RemovedDueToOutOfBoundaries.Add(1)
	m.logger.Infow("Removed request out of batch boundaries", "clientID", clientID, "reqSeqNum", reqSeqNum, "removedReqSeqNum", removed)
}

// RemovePendingForExecutionRequest drops a request once it is executed.
func (m *Manager) RemovePendingForExecutionRequest(clientID uint16, reqSeqNum uint64) {
	ci, ok := m.client(clientID, "RemovePendingForExecutionRequest")
	if !ok {
		return
	}
	if ci.requests.remove(reqSeqNum) {
		m.addPending(-1)
		m.logger.Debugw("Removed request pending for execution", "clientID", clientID, "reqSeqNum", reqSeqNum)
	}
}

// ClearAllPendingRequests drops the requests of every client.
func (m *Manager) ClearAllPendingRequests() {
	removed := 0
	for _, ci := range m.clients {
		removed += ci.requests.clear()
	}
	m.addPending(-int64(removed))
	m.logger.Debugf("Cleared %d pending requests", removed)
}

// InfoOfEarliestPendingRequest returns the arrival time and cid of the
// oldest uncommitted request across clients, or MaxTime and an empty cid
// when there is none.
func (m *Manager) InfoOfEarliestPendingRequest() (time.Time, string) {
	earliest, earliestCID := MaxTime, ""
	for _, clientID := range m.registry.clientIDs {
		t, cid, ok := m.clients[clientID].requests.earliestPending()
		if ok && t.Before(earliest) {
			earliest, earliestCID = t, cid
		}
	}
	return earliest, earliestCID
}

// LogAllPendingRequestsExceedingThreshold logs every uncommitted request
// that has been waiting longer than threshold at now.
func (m *Manager) LogAllPendingRequestsExceedingThreshold(threshold time.Duration, now time.Time) int {
	exceeding := 0
	for _, clientID := range m.registry.clientIDs {
		exceeding += m.clients[clientID].requests.pendingOlderThan(threshold, now, func(reqSeqNum uint64, cid string, age time.Duration) {
			m.logger.Infow("Request is pending for too long", "clientID", clientID, "reqSeqNum", reqSeqNum, "cid", cid, "pendingFor", age)
		})
	}
	if exceeding > 0 {
		m.logger.Infof("%d pending requests exceed the threshold of %s", exceeding, threshold)
	}
	return exceeding
}

func (m *Manager) addPending(delta int64) {
	m.metrics.PendingRequests.Set(float64(atomic.AddInt64(&m.pending, delta)))
}

// HasReply reports whether a reply to the request is indexed.
func (m *Manager) HasReply(clientID uint16, reqSeqNum uint64) bool {
	ci, ok := m.clients[clientID]
	if !ok {
		return false
	}
	return ci.replies.find(reqSeqNum)
}

// ClientSummary describes the state held for a client.
type ClientSummary struct {
	ClientID        uint16
	PendingRequests int
	Replies         []ReplyRef
	PublicKey       *keyexchange.PublicKey
}

// Summary returns the state held for a client.
func (m *Manager) Summary(clientID uint16) (ClientSummary, bool) {
	ci, ok := m.clients[clientID]
	if !ok {
		return ClientSummary{}, false
	}
	s := ClientSummary{
		ClientID:        clientID,
		PendingRequests: ci.requests.size(),
		Replies:         ci.replies.refs(),
	}
	if key, ok := ci.keys.get(); ok {
		s.PublicKey = &key
	}
	return s, true
}
