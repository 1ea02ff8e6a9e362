// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package iprouter

import (
	"github.com/go-logr/logr"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
)

// Rejection records a declared network that was dropped while building a routing table.
type Rejection struct {
	// App is the application that declared the network.
	App string
	// Name is the network name the network was declared under.
	Name string
	// Network is the rejected network, zero if the entry could not be decoded.
	Network v1alpha1.Network
	// Err is the reason of the rejection.
	Err error
}

// Builder merges the declarations of all requirers into a single routing table.
type Builder struct {
	Log logr.Logger
}

// Build folds decls, in the given order, into a routing table.
//
// A declaration is skipped entirely if it has no name, no entries, cannot be decoded,
// or if its name is advertised by more than one declaration. The networks of the
// remaining declarations are validated one by one against the table built so far;
// invalid networks are dropped and returned as rejections, the others are appended
// under the declaration's name.
func (b Builder) Build(decls []Declaration) (*RoutingTable, []Rejection) {
	counts := make(map[string]int, len(decls))
	for _, d := range decls {
		if d.Name != "" {
			counts[d.Name]++
		}
	}

	table := NewRoutingTable()
	var rejected []Rejection
	for _, d := range decls {
		log := b.Log.WithValues("app", d.App, "networkName", d.Name)
		if d.Name == "" {
			log.V(1).Info("Skipping declaration without network name")
			continue
		}
		if d.Err != nil {
			log.Error(d.Err, "Skipping declaration with malformed networks")
			rejected = append(rejected, Rejection{App: d.App, Name: d.Name, Err: d.Err})
			continue
		}
		if d.Empty() {
			log.V(1).Info("Skipping declaration without networks")
			continue
		}
		if n := counts[d.Name]; n > 1 {
			err := &NameCollisionError{Name: d.Name, Count: n}
			log.Error(err, "Skipping declaration with duplicate network name")
			rejected = append(rejected, Rejection{App: d.App, Name: d.Name, Err: err})
			continue
		}

		table.Set(d.Name, nil)
		for _, err := range d.Malformed {
			log.Error(err, "Skipping malformed network entry")
			rejected = append(rejected, Rejection{App: d.App, Name: d.Name, Err: err})
		}
		for _, n := range d.Networks {
			if err := Validate(n, table); err != nil {
				log.Error(err, "Skipping invalid network entry", "network", n.Network)
				rejected = append(rejected, Rejection{App: d.App, Name: d.Name, Network: n, Err: err})
				continue
			}
			table.Append(d.Name, n)
			log.V(1).Info("Added network to routing table", "network", n.Network)
		}
	}
	return table, rejected
}
