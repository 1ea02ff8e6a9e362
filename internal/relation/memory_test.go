// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package relation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Relations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id1 := m.Integrate("ip-router", "router", "app-a")
	id2 := m.Integrate("ip-router", "router", "app-b")
	m.Integrate("other", "router", "app-c")

	rels, err := m.View("router").Relations(ctx, "ip-router")
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Equal(t, id1, rels[0].ID)
	assert.Equal(t, "app-a", rels[0].App)
	assert.Equal(t, id2, rels[1].ID)
	assert.Equal(t, "app-b", rels[1].App)

	rels, err = m.View("app-a").Relations(ctx, "ip-router")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "router", rels[0].App)

	rels, err = m.View("unrelated").Relations(ctx, "ip-router")
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestMemory_Update(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id := m.Integrate("ip-router", "router", "app-a")

	requirer := m.View("app-a")
	rels, err := requirer.Relations(ctx, "ip-router")
	require.NoError(t, err)
	require.NoError(t, requirer.Update(ctx, rels[0], Databag{"networks": "[]", "network-name": "a"}))

	assert.Equal(t, Databag{"networks": "[]", "network-name": "a"}, m.Data(id, "app-a"))
	assert.Empty(t, m.Data(id, "router"))

	rels, err = m.View("router").Relations(ctx, "ip-router")
	require.NoError(t, err)
	assert.Equal(t, "a", rels[0].Remote["network-name"])

	// Snapshots are copies.
	rels[0].Remote["network-name"] = "mutated"
	assert.Equal(t, "a", m.Data(id, "app-a")["network-name"])

	// Empty values delete keys.
	require.NoError(t, requirer.Update(ctx, rels[0], Databag{"network-name": ""}))
	assert.Equal(t, Databag{"networks": "[]"}, m.Data(id, "app-a"))
}

func TestMemory_UpdateRemovedRelation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id := m.Integrate("ip-router", "router", "app-a")

	rels, err := m.View("router").Relations(ctx, "ip-router")
	require.NoError(t, err)
	m.Remove(id)

	assert.Error(t, m.View("router").Update(ctx, rels[0], Databag{"networks": "{}"}))
	assert.Nil(t, m.Data(id, "router"))
}

func TestMemory_UpdateForeignRelation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Integrate("ip-router", "router", "app-a")

	rels, err := m.View("router").Relations(ctx, "ip-router")
	require.NoError(t, err)
	assert.Error(t, m.View("intruder").Update(ctx, rels[0], Databag{"networks": "{}"}))
}
