/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package prometheus_test

import (
	"strings"

	"github.com/hyperledger-labs/bftclients/common/metrics"
	"github.com/hyperledger-labs/bftclients/common/metrics/prometheus"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("Provider", func() {
	var (
		registry *prom.Registry
		p        *prometheus.Provider
	)

	BeforeEach(func() {
		registry = prom.NewRegistry()
		p = &prometheus.Provider{Registerer: registry}
	})

	It("implements metrics.Provider", func() {
		var mp metrics.Provider = p
		Expect(mp).NotTo(BeNil())
	})

	Describe("NewCounter", func() {
		It("registers a counter that accumulates by label", func() {
			c := p.NewCounter(metrics.CounterOpts{
				Namespace:  "bftclients",
				Subsystem:  "manager",
				Name:       "test_counter",
				Help:       "A test counter.",
				LabelNames: []string{"client"},
			})
			c.With("client", "3").Add(1)
			c.With("client", "3").Add(2)
			c.With("client", "4").Add(5)

			expected := `
# HELP bftclients_manager_test_counter A test counter.
# TYPE bftclients_manager_test_counter counter
bftclients_manager_test_counter{client="3"} 3
bftclients_manager_test_counter{client="4"} 5
`
			err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "bftclients_manager_test_counter")
			Expect(err).NotTo(HaveOccurred())
		})

		It("panics when the same counter is registered twice", func() {
			opts := metrics.CounterOpts{Name: "dup"}
			p.NewCounter(opts)
			Expect(func() { p.NewCounter(opts) }).To(Panic())
		})
	})

	Describe("NewGauge", func() {
		It("registers a gauge that can be set and added to", func() {
			g := p.NewGauge(metrics.GaugeOpts{
				Namespace: "bftclients",
				Name:      "test_gauge",
				Help:      "A test gauge.",
			})
			g.Set(7)
			g.Add(-2)

			expected := `
# HELP bftclients_test_gauge A test gauge.
# TYPE bftclients_test_gauge gauge
bftclients_test_gauge 5
`
			err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "bftclients_test_gauge")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
