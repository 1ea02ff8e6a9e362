// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package iprouter

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
	"github.com/ironcore-dev/ip-router-operator/internal/relation"
)

// TableUpdatedFunc is called after a routing table has been computed or received.
type TableUpdatedFunc func(ctx context.Context, table *RoutingTable)

// notifier fans out table-updated notifications to its subscribers.
type notifier struct {
	mu   sync.RWMutex
	subs []TableUpdatedFunc
}

func (n *notifier) Subscribe(fn TableUpdatedFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, fn)
}

func (n *notifier) notify(ctx context.Context, table *RoutingTable) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, fn := range n.subs {
		fn(ctx, table)
	}
}

// ReconcileResult summarizes a single provider reconciliation.
type ReconcileResult struct {
	Outcome Outcome
	// Table is the routing table that was published.
	Table *RoutingTable
	// Rejected holds every declared network that did not make it into Table.
	Rejected []Rejection
	// Relations is the number of relations the table was written to.
	Relations int
}

// Provider merges the declarations of all requirers of a relation endpoint and
// publishes the result to each of them.
type Provider struct {
	notifier

	bus  relation.Bus
	name string
	log  logr.Logger
}

// NewProvider returns a provider publishing on the relation endpoint name of bus.
func NewProvider(bus relation.Bus, name string, log logr.Logger) *Provider {
	if name == "" {
		name = v1alpha1.DefaultRelationName
	}
	return &Provider{bus: bus, name: name, log: log.WithValues("relation", name)}
}

// RoutingTable builds the routing table from the current state of the bus without
// publishing it.
func (p *Provider) RoutingTable(ctx context.Context) (*RoutingTable, []Rejection, error) {
	rels, err := p.bus.Relations(ctx, p.name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list relations: %w", err)
	}
	table, rejected := p.build(rels)
	return table, rejected, nil
}

// FlattenedRoutingTable returns all networks of the current routing table as a single list.
func (p *Provider) FlattenedRoutingTable(ctx context.Context) ([]v1alpha1.Network, error) {
	table, _, err := p.RoutingTable(ctx)
	if err != nil {
		return nil, err
	}
	return table.Flatten(), nil
}

// Reconcile rebuilds the routing table from all requirer declarations and writes it
// to the local databag of every relation. Only the leader publishes; any other role
// leaves the bus untouched.
func (p *Provider) Reconcile(ctx context.Context, role Role) (ReconcileResult, error) {
	if role != Leader {
		p.log.V(1).Info("Not the leader, skipping routing table update")
		return ReconcileResult{Outcome: Skipped}, nil
	}

	rels, err := p.bus.Relations(ctx, p.name)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("failed to list relations: %w", err)
	}
	table, rejected := p.build(rels)

	payload, err := encodeTable(table)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("failed to encode routing table: %w", err)
	}

	res := ReconcileResult{Outcome: Applied, Table: table, Rejected: rejected}
	for _, rel := range rels {
		if err := p.bus.Update(ctx, rel, relation.Databag{NetworksKey: payload}); err != nil {
			return res, fmt.Errorf("failed to publish routing table on relation %s: %w", rel.ID, err)
		}
		res.Relations++
	}
	p.log.Info("Published routing table", "names", table.Len(), "relations", res.Relations, "rejected", len(rejected))

	p.notify(ctx, table)
	return res, nil
}

// HandleRelationChanged is called whenever a requirer updated its declaration.
func (p *Provider) HandleRelationChanged(ctx context.Context, role Role) (ReconcileResult, error) {
	return p.Reconcile(ctx, role)
}

// HandleRelationDeparted is called after a requirer left. The departed relation is
// expected to be gone from the bus already, so its networks are dropped from the table.
func (p *Provider) HandleRelationDeparted(ctx context.Context, role Role) (ReconcileResult, error) {
	return p.Reconcile(ctx, role)
}

// Withdraw removes the published routing table from all relations.
func (p *Provider) Withdraw(ctx context.Context, role Role) (Outcome, error) {
	if role != Leader {
		return Skipped, nil
	}
	rels, err := p.bus.Relations(ctx, p.name)
	if err != nil {
		return Skipped, fmt.Errorf("failed to list relations: %w", err)
	}
	for _, rel := range rels {
		if _, ok := rel.Local[NetworksKey]; !ok {
			continue
		}
		if err := p.bus.Update(ctx, rel, relation.Databag{NetworksKey: ""}); err != nil {
			return Skipped, fmt.Errorf("failed to withdraw routing table from relation %s: %w", rel.ID, err)
		}
	}
	return Applied, nil
}

func (p *Provider) build(rels []relation.Relation) (*RoutingTable, []Rejection) {
	decls := make([]Declaration, 0, len(rels))
	for _, rel := range rels {
		decls = append(decls, DeclarationFrom(rel))
	}
	return Builder{Log: p.log}.Build(decls)
}
