// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package iprouter

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
)

// RoutingTable maps network names to the networks published under them.
// Names keep the order in which they were first inserted.
type RoutingTable struct {
	names    []string
	networks map[string][]v1alpha1.Network
}

// NewRoutingTable returns an empty routing table.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{networks: make(map[string][]v1alpha1.Network)}
}

// Set replaces the networks stored under name. A new name is appended at the end,
// an existing name keeps its position.
func (t *RoutingTable) Set(name string, networks []v1alpha1.Network) {
	if t.networks == nil {
		t.networks = make(map[string][]v1alpha1.Network)
	}
	if _, ok := t.networks[name]; !ok {
		t.names = append(t.names, name)
	}
	t.networks[name] = slices.Clone(networks)
	if t.networks[name] == nil {
		t.networks[name] = []v1alpha1.Network{}
	}
}

// Append adds n to the networks stored under name.
func (t *RoutingTable) Append(name string, n v1alpha1.Network) {
	if _, ok := t.networks[name]; !ok {
		t.Set(name, nil)
	}
	t.networks[name] = append(t.networks[name], n)
}

// Names returns the network names in insertion order.
func (t *RoutingTable) Names() []string {
	if t == nil {
		return nil
	}
	return slices.Clone(t.names)
}

// Networks returns the networks stored under name.
func (t *RoutingTable) Networks(name string) []v1alpha1.Network {
	if t == nil {
		return nil
	}
	return t.networks[name]
}

// Has reports whether name is present in the table.
func (t *RoutingTable) Has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.networks[name]
	return ok
}

// Len returns the number of names in the table.
func (t *RoutingTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Each calls fn for every network in the table until fn returns false.
func (t *RoutingTable) Each(fn func(name string, n v1alpha1.Network) bool) {
	if t == nil {
		return
	}
	for _, name := range t.names {
		for _, n := range t.networks[name] {
			if !fn(name, n) {
				return
			}
		}
	}
}

// Flatten returns all networks of the table, ordered by name insertion order and then
// by the order they were declared in.
func (t *RoutingTable) Flatten() []v1alpha1.Network {
	res := []v1alpha1.Network{}
	t.Each(func(_ string, n v1alpha1.Network) bool {
		res = append(res, n)
		return true
	})
	return res
}

// Without returns a copy of the table that does not contain name.
func (t *RoutingTable) Without(name string) *RoutingTable {
	res := NewRoutingTable()
	if t == nil {
		return res
	}
	for _, n := range t.names {
		if n != name {
			res.Set(n, t.networks[n])
		}
	}
	return res
}

// Entries converts the table into its API representation.
func (t *RoutingTable) Entries() []v1alpha1.RoutingTableEntry {
	if t.Len() == 0 {
		return nil
	}
	res := make([]v1alpha1.RoutingTableEntry, 0, len(t.names))
	for _, name := range t.names {
		res = append(res, v1alpha1.RoutingTableEntry{
			Name:     name,
			Networks: slices.Clone(t.networks[name]),
		})
	}
	return res
}

// AsMap returns the table as a plain map, dropping the order of names.
func (t *RoutingTable) AsMap() map[string][]v1alpha1.Network {
	res := make(map[string][]v1alpha1.Network, t.Len())
	for _, name := range t.Names() {
		res[name] = t.networks[name]
	}
	return res
}

// MarshalJSON encodes the table as a JSON object whose keys follow the insertion order.
func (t *RoutingTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range t.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		networks := t.networks[name]
		if networks == nil {
			networks = []v1alpha1.Network{}
		}
		val, err := json.Marshal(networks)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
