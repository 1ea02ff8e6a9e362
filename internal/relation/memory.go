// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package relation

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Memory is an in-process relation bus. Relations are enumerated in the order
// they were integrated.
type Memory struct {
	mu        sync.Mutex
	nextID    int
	relations []*memoryRelation
}

type memoryRelation struct {
	id       string
	name     string
	provider string
	requirer string
	data     map[string]Databag
}

func (r *memoryRelation) remote(app string) (string, bool) {
	switch app {
	case r.provider:
		return r.requirer, true
	case r.requirer:
		return r.provider, true
	}
	return "", false
}

// NewMemory returns an empty in-process relation bus.
func NewMemory() *Memory {
	return &Memory{}
}

// Integrate establishes a relation between provider and requirer over the
// endpoint name and returns its ID.
func (m *Memory) Integrate(name, provider, requirer string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := name + ":" + strconv.Itoa(m.nextID)
	m.nextID++
	m.relations = append(m.relations, &memoryRelation{
		id:       id,
		name:     name,
		provider: provider,
		requirer: requirer,
		data: map[string]Databag{
			provider: {},
			requirer: {},
		},
	})
	return id
}

// Remove removes the relation with the given ID, along with both databags.
func (m *Memory) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, rel := range m.relations {
		if rel.id == id {
			m.relations = append(m.relations[:i], m.relations[i+1:]...)
			return
		}
	}
}

// Data returns a copy of the databag app holds on the relation with the given ID.
func (m *Memory) Data(id, app string) Databag {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rel := range m.relations {
		if rel.id == id {
			return rel.data[app].Clone()
		}
	}
	return nil
}

// Set overwrites keys in the databag of app, bypassing any ownership check.
// It stands in for a remote application writing its own databag.
func (m *Memory) Set(id, app string, data Databag) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rel := range m.relations {
		if rel.id == id {
			if rel.data[app] == nil {
				rel.data[app] = Databag{}
			}
			merge(rel.data[app], data)
			return
		}
	}
}

// View returns the bus as seen by app.
func (m *Memory) View(app string) Bus {
	return &memoryView{memory: m, app: app}
}

type memoryView struct {
	memory *Memory
	app    string
}

var _ Bus = (*memoryView)(nil)

func (v *memoryView) Relations(_ context.Context, name string) ([]Relation, error) {
	v.memory.mu.Lock()
	defer v.memory.mu.Unlock()

	var res []Relation
	for _, rel := range v.memory.relations {
		if rel.name != name {
			continue
		}
		remote, ok := rel.remote(v.app)
		if !ok {
			continue
		}
		res = append(res, Relation{
			ID:     rel.id,
			Name:   rel.name,
			App:    remote,
			Local:  rel.data[v.app].Clone(),
			Remote: rel.data[remote].Clone(),
		})
	}
	return res, nil
}

func (v *memoryView) Update(_ context.Context, r Relation, data Databag) error {
	v.memory.mu.Lock()
	defer v.memory.mu.Unlock()

	for _, rel := range v.memory.relations {
		if rel.id != r.ID {
			continue
		}
		if _, ok := rel.remote(v.app); !ok {
			return fmt.Errorf("application %q is not part of relation %s", v.app, r.ID)
		}
		merge(rel.data[v.app], data)
		return nil
	}
	return fmt.Errorf("relation %s not found", r.ID)
}
