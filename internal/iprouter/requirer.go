// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package iprouter

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
	"github.com/ironcore-dev/ip-router-operator/internal/relation"
)

// Requirer publishes the networks of a requirer application and reads back the
// routing tables published by its providers.
type Requirer struct {
	notifier

	bus  relation.Bus
	name string
	log  logr.Logger
}

// NewRequirer returns a requirer using the relation endpoint name of bus.
func NewRequirer(bus relation.Bus, name string, log logr.Logger) *Requirer {
	if name == "" {
		name = v1alpha1.DefaultRelationName
	}
	return &Requirer{bus: bus, name: name, log: log.WithValues("relation", name)}
}

// RequestNetwork replaces the networks this application declared on all its relations.
//
// The request is validated as a whole before anything is written: every network must
// be valid, must not conflict with the current routing table and must not conflict with
// any other network of the same request. The networks previously declared by this
// application are not taken into account since the request replaces them. If name is
// empty, the relation endpoint name is used.
func (r *Requirer) RequestNetwork(ctx context.Context, role Role, networks []v1alpha1.Network, name string) (Outcome, error) {
	if role != Leader {
		r.log.V(1).Info("Not the leader, skipping network request")
		return Skipped, nil
	}
	if name == "" {
		name = r.name
	}

	rels, err := r.bus.Relations(ctx, r.name)
	if err != nil {
		return Skipped, fmt.Errorf("failed to list relations: %w", err)
	}
	if len(rels) == 0 {
		return Skipped, ErrNoRelation
	}

	existing := r.routingTable(rels)
	for _, rel := range rels {
		if prev := rel.Local[NetworkNameKey]; prev != "" {
			existing = existing.Without(prev)
		}
	}
	if err := ValidateRequest(networks, existing); err != nil {
		r.log.Error(err, "Network request is invalid, no networks were published", "networkName", name)
		return Skipped, err
	}

	payload, err := encodeNetworks(networks)
	if err != nil {
		return Skipped, fmt.Errorf("failed to encode networks: %w", err)
	}
	for _, rel := range rels {
		data := relation.Databag{NetworksKey: payload, NetworkNameKey: name}
		if err := r.bus.Update(ctx, rel, data); err != nil {
			return Skipped, fmt.Errorf("failed to publish networks on relation %s: %w", rel.ID, err)
		}
	}
	r.log.Info("Requested networks", "networkName", name, "networks", len(networks), "relations", len(rels))
	return Applied, nil
}

// RoutingTable returns the routing tables published by all providers, merged into one.
//
// The published data is validated again before it is returned: invalid or conflicting
// networks are dropped. If any provider published something other than a JSON object
// the result is empty. A follower always gets nil.
func (r *Requirer) RoutingTable(ctx context.Context, role Role) (*RoutingTable, error) {
	if role != Leader {
		return nil, nil
	}
	rels, err := r.bus.Relations(ctx, r.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	return r.routingTable(rels), nil
}

func (r *Requirer) routingTable(rels []relation.Relation) *RoutingTable {
	table := NewRoutingTable()
	for _, rel := range rels {
		payload := rel.Remote[NetworksKey]
		if payload == "" {
			continue
		}
		entries, err := decodePublished(payload)
		if err != nil {
			r.log.Error(err, "Routing table of provider is misconfigured, ignoring all routing tables", "app", rel.App)
			return NewRoutingTable()
		}
		for _, entry := range entries {
			table.Set(entry.name, nil)
			for _, err := range entry.malformed {
				r.log.Info("Malformed network detected in routing table", "app", rel.App, "error", err.Error())
			}
			for _, n := range entry.networks {
				if err := Validate(n, table); err != nil {
					r.log.Info("Invalid network detected in routing table", "app", rel.App, "network", n.Network, "error", err.Error())
					continue
				}
				table.Append(entry.name, n)
			}
		}
		r.log.V(1).Info("Read routing table", "app", rel.App)
	}
	return table
}

// AllNetworks returns the networks published by all providers as a single list.
//
// Unlike [Requirer.RoutingTable], every network is checked against all networks
// accepted before it regardless of its name. The result is nil for a follower or if
// any provider published something other than a JSON object.
func (r *Requirer) AllNetworks(ctx context.Context, role Role) ([]v1alpha1.Network, error) {
	if role != Leader {
		return nil, nil
	}
	rels, err := r.bus.Relations(ctx, r.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}

	const accumulator = "existing-networks"
	all := NewRoutingTable()
	all.Set(accumulator, nil)
	for _, rel := range rels {
		payload := rel.Remote[NetworksKey]
		if payload == "" {
			continue
		}
		entries, err := decodePublished(payload)
		if err != nil {
			r.log.Error(err, "Routing table of provider is misconfigured, ignoring all routing tables", "app", rel.App)
			return nil, nil
		}
		for _, entry := range entries {
			for _, n := range entry.networks {
				if err := Validate(n, all); err != nil {
					r.log.Info("Invalid network detected in routing table", "app", rel.App, "network", n.Network, "error", err.Error())
					continue
				}
				all.Append(accumulator, n)
			}
		}
	}
	return all.Flatten(), nil
}

// HandleRelationChanged reads the routing table after a provider published a new one
// and notifies all subscribers.
func (r *Requirer) HandleRelationChanged(ctx context.Context, role Role) (*RoutingTable, error) {
	table, err := r.RoutingTable(ctx, role)
	if err != nil || table == nil {
		return table, err
	}
	r.notify(ctx, table)
	return table, nil
}

// Withdraw removes the networks this application declared from all its relations.
func (r *Requirer) Withdraw(ctx context.Context, role Role) (Outcome, error) {
	if role != Leader {
		return Skipped, nil
	}
	rels, err := r.bus.Relations(ctx, r.name)
	if err != nil {
		return Skipped, fmt.Errorf("failed to list relations: %w", err)
	}
	for _, rel := range rels {
		if len(rel.Local) == 0 {
			continue
		}
		if err := r.bus.Update(ctx, rel, relation.Databag{NetworksKey: "", NetworkNameKey: ""}); err != nil {
			return Skipped, fmt.Errorf("failed to withdraw networks from relation %s: %w", rel.ID, err)
		}
	}
	return Applied, nil
}
