/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package localconfig loads the configuration of a bftclients replica.
package localconfig

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperledger-labs/bftclients/common/flogging"
	"github.com/hyperledger-labs/bftclients/internal/clients"
	"github.com/hyperledger-labs/bftclients/internal/msgs"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var logger = flogging.MustGetLogger("bftclients.localconfig")

// Prefix is the prefix of environment variable overrides, e.g.
// BFTCLIENTS_CLIENTS_MAXREPLYMESSAGESIZE.
const Prefix = "BFTCLIENTS"

// ConfigName is the stem of the configuration file name.
const ConfigName = "bftclients"

const (
	MemoryStorage  = "memory"
	LevelDBStorage = "leveldb"

	PrometheusProvider = "prometheus"
	DisabledProvider   = "disabled"
)

// TopLevel is the configuration of a replica.
type TopLevel struct {
	General       General       `yaml:"General"`
	Clients       Clients       `yaml:"Clients"`
	ReservedPages ReservedPages `yaml:"ReservedPages"`
	Metrics       Metrics       `yaml:"Metrics"`
}

// General holds logging configuration.
type General struct {
	LogSpec   string `yaml:"LogSpec"`
	LogFormat string `yaml:"LogFormat"`
}

// Clients describes the clients of the deployment and the bounds on the
// requests and replies kept for them.
type Clients struct {
	MaxReplyMessageSize      uint32   `yaml:"MaxReplyMessageSize"`
	ClientBatchingEnabled    bool     `yaml:"ClientBatchingEnabled"`
	ClientBatchingMaxMsgsNbr uint16   `yaml:"ClientBatchingMaxMsgsNbr"`
	MaxNumOfRequestsInBatch  uint16   `yaml:"MaxNumOfRequestsInBatch"`
	ProxyClients             []uint16 `yaml:"ProxyClients"`
	ExternalClients          []uint16 `yaml:"ExternalClients"`
	ClientServices           []uint16 `yaml:"ClientServices"`
	InternalClients          []uint16 `yaml:"InternalClients"`
}

// ReservedPages configures the page store the ledger persists into.
type ReservedPages struct {
	PageSize       uint32 `yaml:"PageSize"`
	Storage        string `yaml:"Storage"`
	FileSystemPath string `yaml:"FileSystemPath"`
	SyncWrites     bool   `yaml:"SyncWrites"`
	// CacheSizeBytes enables a read cache in front of the store when
	// positive.
	CacheSizeBytes uint32 `yaml:"CacheSizeBytes"`
}

// Metrics selects the metrics provider.
type Metrics struct {
	Provider string `yaml:"Provider"`
}

// Defaults are applied to every key left unset.
var Defaults = TopLevel{
	General: General{
		LogSpec:   "info",
		LogFormat: "console",
	},
	Clients: Clients{
		MaxReplyMessageSize:      8192,
		ClientBatchingMaxMsgsNbr: 10,
	},
	ReservedPages: ReservedPages{
		PageSize:       4096,
		Storage:        MemoryStorage,
		FileSystemPath: "/var/bftclients/pages",
	},
	Metrics: Metrics{
		Provider: DisabledProvider,
	},
}

func (c *TopLevel) completeInitialization() {
	for {
		switch {
		case c.General.LogSpec == "":
			logger.Infof("General.LogSpec unset, setting to %s", Defaults.General.LogSpec)
			c.General.LogSpec = Defaults.General.LogSpec
		case c.General.LogFormat == "":
			logger.Infof("General.LogFormat unset, setting to %s", Defaults.General.LogFormat)
			c.General.LogFormat = Defaults.General.LogFormat
		case c.Clients.MaxReplyMessageSize == 0:
			logger.Infof("Clients.MaxReplyMessageSize unset, setting to %d", Defaults.Clients.MaxReplyMessageSize)
			c.Clients.MaxReplyMessageSize = Defaults.Clients.MaxReplyMessageSize
		case c.Clients.ClientBatchingMaxMsgsNbr == 0:
			logger.Infof("Clients.ClientBatchingMaxMsgsNbr unset, setting to %d", Defaults.Clients.ClientBatchingMaxMsgsNbr)
			c.Clients.ClientBatchingMaxMsgsNbr = Defaults.Clients.ClientBatchingMaxMsgsNbr
		case c.ReservedPages.PageSize == 0:
			logger.Infof("ReservedPages.PageSize unset, setting to %d", Defaults.ReservedPages.PageSize)
			c.ReservedPages.PageSize = Defaults.ReservedPages.PageSize
		case c.ReservedPages.Storage == "":
			logger.Infof("ReservedPages.Storage unset, setting to %s", Defaults.ReservedPages.Storage)
			c.ReservedPages.Storage = Defaults.ReservedPages.Storage
		case c.ReservedPages.FileSystemPath == "":
			logger.Infof("ReservedPages.FileSystemPath unset, setting to %s", Defaults.ReservedPages.FileSystemPath)
			c.ReservedPages.FileSystemPath = Defaults.ReservedPages.FileSystemPath
		case c.Metrics.Provider == "":
			logger.Infof("Metrics.Provider unset, setting to %s", Defaults.Metrics.Provider)
			c.Metrics.Provider = Defaults.Metrics.Provider
		default:
			return
		}
	}
}

// ConfigPaths returns the directories searched for the configuration file:
// BFTCLIENTS_CFG_PATH when set, the working directory and /etc/bftclients.
func ConfigPaths() []string {
	var paths []string
	if p := os.Getenv(Prefix + "_CFG_PATH"); p != "" {
		paths = append(paths, p)
	}
	return append(paths, ".", "/etc/bftclients")
}

// Load reads the configuration file at path, or searches ConfigPaths for
// bftclients.yaml when path is empty, applies environment overrides and
// defaults and validates the result.
func Load(path string) (*TopLevel, error) {
	config := viper.New()
	config.SetConfigType("yaml")
	if path != "" {
		config.SetConfigFile(path)
	} else {
		config.SetConfigName(ConfigName)
		for _, p := range ConfigPaths() {
			config.AddConfigPath(p)
		}
	}

	config.SetEnvPrefix(Prefix)
	config.AutomaticEnv()
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := config.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "error reading configuration from %s", describe(path))
	}
	logger.Debugf("Using configuration file %s", config.ConfigFileUsed())

	var uconf TopLevel
	if err := enhancedExactUnmarshal(config, &uconf); err != nil {
		return nil, errors.Wrapf(err, "error unmarshaling configuration %s", config.ConfigFileUsed())
	}

	uconf.completeInitialization()
	if uconf.ReservedPages.Storage == LevelDBStorage && !filepath.IsAbs(uconf.ReservedPages.FileSystemPath) {
		uconf.ReservedPages.FileSystemPath = filepath.Join(filepath.Dir(config.ConfigFileUsed()), uconf.ReservedPages.FileSystemPath)
	}

	if err := uconf.Validate(); err != nil {
		return nil, err
	}
	return &uconf, nil
}

func describe(path string) string {
	if path != "" {
		return path
	}
	return strings.Join(ConfigPaths(), ", ")
}

// Validate checks that the configuration is usable.
func (c *TopLevel) Validate() error {
	switch {
	case c.General.LogFormat != "console" && c.General.LogFormat != "json" && c.General.LogFormat != "logfmt":
		return errors.Errorf("unsupported log format '%s'", c.General.LogFormat)
	case c.Clients.MaxReplyMessageSize < msgs.ClientReplyHeaderSize:
		return errors.Errorf("Clients.MaxReplyMessageSize %d is smaller than the %d byte reply header", c.Clients.MaxReplyMessageSize, msgs.ClientReplyHeaderSize)
	case c.Clients.ClientBatchingEnabled && c.Clients.ClientBatchingMaxMsgsNbr == 0:
		return errors.New("Clients.ClientBatchingMaxMsgsNbr must be positive when client batching is enabled")
	case len(c.Clients.ProxyClients)+len(c.Clients.ExternalClients)+len(c.Clients.ClientServices)+len(c.Clients.InternalClients) == 0:
		return errors.New("no clients configured")
	case c.ReservedPages.PageSize == 0:
		return errors.New("ReservedPages.PageSize must be positive")
	case c.ReservedPages.Storage != MemoryStorage && c.ReservedPages.Storage != LevelDBStorage:
		return errors.Errorf("unknown reserved pages storage '%s'", c.ReservedPages.Storage)
	case c.Metrics.Provider != PrometheusProvider && c.Metrics.Provider != DisabledProvider:
		return errors.Errorf("unknown metrics provider '%s'", c.Metrics.Provider)
	}
	return nil
}

// ClientBatchBound is the number of requests and replies kept per client.
func (c *TopLevel) ClientBatchBound() uint16 {
	if c.Clients.ClientBatchingEnabled {
		return c.Clients.ClientBatchingMaxMsgsNbr
	}
	return 1
}

// ManagerConfig returns the configuration of the clients ledger.
func (c *TopLevel) ManagerConfig() clients.Config {
	return clients.Config{
		MaxReplySize:       c.Clients.MaxReplyMessageSize,
		MaxReqsPerClient:   c.ClientBatchBound(),
		MaxRequestsInBatch: c.Clients.MaxNumOfRequestsInBatch,
		ProxyClients:       c.Clients.ProxyClients,
		ExternalClients:    c.Clients.ExternalClients,
		ClientServices:     c.Clients.ClientServices,
		InternalClients:    c.Clients.InternalClients,
	}
}
