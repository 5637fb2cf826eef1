/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"io"
	"os"

	"github.com/hyperledger-labs/bftclients/common/flogging"
	logmetrics "github.com/hyperledger-labs/bftclients/common/flogging/metrics"
	"github.com/hyperledger-labs/bftclients/internal/clientsadmin"
	"github.com/hyperledger-labs/bftclients/internal/localconfig"
	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var logger = flogging.MustGetLogger("bftclients.cli")

var (
	configPath   string
	printMetrics bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "bftclients",
		Short:        "Inspect the clients ledger of a BFT replica.",
		SilenceUsage: true,
	}
	addConfigFlag(cmd.PersistentFlags())
	cmd.AddCommand(configCmd(), layoutCmd(), inspectCmd(), versionCmd())
	return cmd
}

func addConfigFlag(flags *pflag.FlagSet) {
	flags.StringVarP(&configPath, "config", "c", "",
		"Path to the configuration file. When empty bftclients.yaml is searched in $BFTCLIENTS_CFG_PATH, . and /etc/bftclients.")
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Prints the effective configuration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			return clientsadmin.PrintConfig(cmd.OutOrStdout(), conf)
		},
	}
}

func layoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Prints where the reserved pages of every client are placed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}

			// the layout depends on the configuration only
			layoutConf := *conf
			layoutConf.ReservedPages.Storage = localconfig.MemoryStorage
			layoutConf.ReservedPages.CacheSizeBytes = 0

			ledger, err := clientsadmin.OpenLedger(&layoutConf, clientsadmin.NewMetricsProvider(conf.Metrics, prom.NewRegistry()), false)
			if err != nil {
				return err
			}
			defer closeLedger(ledger)

			return clientsadmin.WriteLayout(cmd.OutOrStdout(), ledger)
		},
	}
}

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Loads the persisted clients ledger and prints keys and replies.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}

			metricsConf := conf.Metrics
			if printMetrics {
				metricsConf.Provider = localconfig.PrometheusProvider
			}
			registry := prom.NewRegistry()
			provider := clientsadmin.NewMetricsProvider(metricsConf, registry)
			defer flogging.Global.SetObserver(flogging.Global.SetObserver(logmetrics.NewObserver(provider)))

			ledger, err := clientsadmin.OpenLedger(conf, provider, true)
			if err != nil {
				return err
			}
			defer closeLedger(ledger)

			if err := clientsadmin.Inspect(cmd.OutOrStdout(), ledger.Manager); err != nil {
				return err
			}
			if printMetrics {
				return writeMetrics(cmd.OutOrStdout(), registry)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printMetrics, "metrics", false, "Also print the ledger metrics in the prometheus text format.")
	return cmd
}

func loadConfig() (*localconfig.TopLevel, error) {
	conf, err := localconfig.Load(configPath)
	if err != nil {
		return nil, err
	}

	spec := os.Getenv("BFTCLIENTS_LOGGING_SPEC")
	if spec == "" {
		spec = conf.General.LogSpec
	}
	flogging.Init(flogging.Config{
		Format:  conf.General.LogFormat,
		LogSpec: spec,
		Writer:  os.Stderr,
	})
	return conf, nil
}

func writeMetrics(w io.Writer, gatherer prom.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return errors.Wrap(err, "failed gathering metrics")
	}
	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return errors.Wrap(err, "failed encoding metrics")
		}
	}
	return nil
}

func closeLedger(ledger *clientsadmin.Ledger) {
	if err := ledger.Close(); err != nil {
		logger.Warnf("Failed closing reserved pages store: %s", err)
	}
}
