// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes routing table metrics on the controller-runtime metrics registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/ironcore-dev/ip-router-operator/internal/iprouter"
)

const (
	RouterLabel      = "router"
	NetworkNameLabel = "network_name"
	ReasonLabel      = "reason"
)

var (
	RoutingTableNetworks = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iprouter_routing_table_networks",
			Help: "Networks published in the routing table of a router, per network name.",
		},
		[]string{RouterLabel, NetworkNameLabel},
	)
	RejectedNetworks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iprouter_rejected_networks_total",
			Help: "Declared networks that were dropped while building the routing table of a router.",
		},
		[]string{RouterLabel, ReasonLabel},
	)
	PublishedRelations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iprouter_published_relations",
			Help: "Relations the routing table of a router was last published to.",
		},
		[]string{RouterLabel},
	)
)

func init() {
	metrics.Registry.MustRegister(
		RoutingTableNetworks,
		RejectedNetworks,
		PublishedRelations,
	)
}

// Observe records the outcome of a published routing table for router.
func Observe(router string, res iprouter.ReconcileResult) {
	RoutingTableNetworks.DeletePartialMatch(prometheus.Labels{RouterLabel: router})
	for _, name := range res.Table.Names() {
		RoutingTableNetworks.WithLabelValues(router, name).Set(float64(len(res.Table.Networks(name))))
	}
	for _, r := range res.Rejected {
		RejectedNetworks.WithLabelValues(router, iprouter.ReasonOf(r.Err)).Inc()
	}
	PublishedRelations.WithLabelValues(router).Set(float64(res.Relations))
}

// Forget removes all series of router.
func Forget(router string) int {
	labels := prometheus.Labels{RouterLabel: router}
	n := RoutingTableNetworks.DeletePartialMatch(labels)
	n += RejectedNetworks.DeletePartialMatch(labels)
	if PublishedRelations.Delete(labels) {
		n++
	}
	return n
}

