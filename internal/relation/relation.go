// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

// Package relation implements the shared key-value bus that connects a provider
// application with its requirer applications.
//
// Every relation carries one databag per application. An application may only
// write its own databag; it reads the databag of the application on the other
// side. There is no locking and no compare-and-swap: the last write wins.
package relation

import (
	"context"
	"maps"
)

// Databag is the flat string map an application publishes on a relation.
type Databag map[string]string

// Clone returns a copy of the databag that is safe to modify.
func (d Databag) Clone() Databag {
	if d == nil {
		return Databag{}
	}
	return maps.Clone(d)
}

// Side is the role an application plays on a relation endpoint.
type Side string

const (
	Provides Side = "provides"
	Requires Side = "requires"
)

// Relation is a snapshot of a single relation as seen by the local application.
type Relation struct {
	// ID uniquely identifies the relation on the bus.
	ID string
	// Name is the relation endpoint name, e.g. "ip-router".
	Name string
	// App is the name of the remote application.
	App string
	// Local is the databag of the local application.
	Local Databag
	// Remote is the databag of the remote application.
	Remote Databag
}

// Bus is a view of the relation bus bound to one local application.
type Bus interface {
	// Relations returns all relations established over the given endpoint name.
	// The order is stable across calls but carries no further meaning.
	Relations(ctx context.Context, name string) ([]Relation, error)

	// Update merges data into the local application's databag of rel.
	// Keys with an empty value are removed.
	Update(ctx context.Context, rel Relation, data Databag) error
}

// merge applies data onto dst following the Update semantics and reports
// whether dst changed.
func merge(dst, data Databag) bool {
	changed := false
	for k, v := range data {
		old, ok := dst[k]
		if v == "" {
			if ok {
				delete(dst, k)
				changed = true
			}
			continue
		}
		if !ok || old != v {
			dst[k] = v
			changed = true
		}
	}
	return changed
}
