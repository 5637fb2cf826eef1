/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package clientsadmin opens the clients ledger of a replica from its
// configuration and renders it for operators.
package clientsadmin

import (
	"io"

	"github.com/hyperledger-labs/bftclients/common/flogging"
	"github.com/hyperledger-labs/bftclients/common/metrics"
	"github.com/hyperledger-labs/bftclients/common/metrics/disabled"
	"github.com/hyperledger-labs/bftclients/common/metrics/prometheus"
	"github.com/hyperledger-labs/bftclients/internal/clients"
	"github.com/hyperledger-labs/bftclients/internal/keyexchange"
	"github.com/hyperledger-labs/bftclients/internal/localconfig"
	"github.com/hyperledger-labs/bftclients/internal/respages"
	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"
)

var logger = flogging.MustGetLogger("bftclients.admin")

// Ledger is a clients Manager together with the store it persists into.
type Ledger struct {
	Manager  *clients.Manager
	Keys     *keyexchange.Registry
	Reserver *respages.Reserver
	Store    respages.Store
}

// NewMetricsProvider returns the metrics provider selected by the
// configuration. Prometheus meters are registered with registerer.
func NewMetricsProvider(conf localconfig.Metrics, registerer prom.Registerer) metrics.Provider {
	if conf.Provider == localconfig.PrometheusProvider {
		return &prometheus.Provider{Registerer: registerer}
	}
	return &disabled.Provider{}
}

// OpenStore opens the reserved page store selected by the configuration.
func OpenStore(conf localconfig.ReservedPages) (respages.Store, error) {
	var store respages.Store
	switch conf.Storage {
	case localconfig.MemoryStorage:
		store = respages.NewMemStore(conf.PageSize)
	case localconfig.LevelDBStorage:
		db, err := respages.OpenLevelDBStore(conf.FileSystemPath, conf.PageSize, conf.SyncWrites)
		if err != nil {
			return nil, err
		}
		store = db
	default:
		return nil, errors.Errorf("unknown reserved pages storage '%s'", conf.Storage)
	}

	if conf.CacheSizeBytes > 0 {
		logger.Debugf("Caching up to %d bytes of reserved pages", conf.CacheSizeBytes)
		store = respages.NewCachedStore(store, int(conf.CacheSizeBytes))
	}
	return store, nil
}

// OpenLedger opens the store and builds the clients ledger on top of it.
// The persisted state is loaded when load is true.
func OpenLedger(conf *localconfig.TopLevel, provider metrics.Provider, load bool) (*Ledger, error) {
	store, err := OpenStore(conf.ReservedPages)
	if err != nil {
		return nil, err
	}

	keys := keyexchange.NewRegistry()
	reserver := respages.NewReserver(store)
	manager, err := clients.New(conf.ManagerConfig(), clients.Dependencies{
		Reserver:     reserver,
		KeyExchanger: keys,
		Metrics:      clients.NewMetrics(provider),
	})
	if err != nil {
		closeStore(store)
		return nil, err
	}

	if load {
		if err := manager.LoadInfoFromReservedPages(); err != nil {
			closeStore(store)
			return nil, errors.WithMessage(err, "failed loading clients from reserved pages")
		}
	}

	return &Ledger{Manager: manager, Keys: keys, Reserver: reserver, Store: store}, nil
}

// Close releases the store.
func (l *Ledger) Close() error {
	if c, ok := l.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func closeStore(store respages.Store) {
	if c, ok := store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warnf("Failed closing reserved pages store: %s", err)
		}
	}
}
