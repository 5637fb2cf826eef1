/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package clients

import "github.com/hyperledger-labs/bftclients/common/metrics"

var (
	replyInconsistencyDetectedOpts = metrics.CounterOpts{
		Namespace: "bftclients",
		Subsystem: "manager",
		Name:      "reply_inconsistency_detected",
		Help:      "The number of persisted replies found not to match the request they were loaded for.",
	}
	removedDueToOutOfBoundariesOpts = metrics.CounterOpts{
		Namespace: "bftclients",
		Subsystem: "manager",
		Name:      "removed_due_to_out_of_boundaries",
		Help:      "The number of pending requests dropped because they were outside the batch bounds.",
	}
	pendingRequestsOpts = metrics.GaugeOpts{
		Namespace: "bftclients",
		Subsystem: "manager",
		Name:      "pending_requests",
		Help:      "The number of client requests in process, committed or not.",
	}
)

// Metrics are the meters of a Manager.
type Metrics struct {
	ReplyInconsistencyDetected  metrics.Counter
	RemovedDueToOutOfBoundaries metrics.Counter
	PendingRequests             metrics.Gauge
}

func NewMetrics(p metrics.Provider) *Metrics {
	return &Metrics{
		ReplyInconsistencyDetected:  p.NewCounter(replyInconsistencyDetectedOpts),
		RemovedDueToOutOfBoundaries: p.NewCounter(removedDueToOutOfBoundariesOpts),
		PendingRequests:             p.NewGauge(pendingRequestsOpts),
	}
}
