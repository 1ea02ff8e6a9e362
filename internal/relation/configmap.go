// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package relation

import (
	"context"
	"sort"
	"strings"

	perrors "github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
)

const (
	errListRelations  = "cannot list relations"
	errGetRelation    = "cannot get relation"
	errUpdateRelation = "cannot update relation"
	errJoinRelation   = "cannot join relation"
	errLeaveRelation  = "cannot leave relation"
)

// ConfigMapBus is a relation bus backed by ConfigMaps. Every relation is stored
// in a single ConfigMap labelled with the endpoint name and both applications.
// The databag of an application is kept under keys of the form "<app>.<key>".
type ConfigMapBus struct {
	client    client.Client
	namespace string
	app       string
	side      Side
}

var _ Bus = (*ConfigMapBus)(nil)

// NewConfigMapBus returns a view of the relation bus in namespace for the
// application app playing side.
func NewConfigMapBus(c client.Client, namespace, app string, side Side) *ConfigMapBus {
	return &ConfigMapBus{
		client:    c,
		namespace: namespace,
		app:       app,
		side:      side,
	}
}

// ConfigMapName returns the name of the ConfigMap holding the relation between
// provider and requirer over the endpoint name.
func ConfigMapName(name, provider, requirer string) string {
	return name + "-" + provider + "-" + requirer
}

func (b *ConfigMapBus) localLabel() string {
	if b.side == Provides {
		return v1alpha1.ProviderLabel
	}
	return v1alpha1.RequirerLabel
}

func (b *ConfigMapBus) remoteLabel() string {
	if b.side == Provides {
		return v1alpha1.RequirerLabel
	}
	return v1alpha1.ProviderLabel
}

func (b *ConfigMapBus) Relations(ctx context.Context, name string) ([]Relation, error) {
	list := &corev1.ConfigMapList{}
	if err := b.client.List(ctx, list, client.InNamespace(b.namespace), client.MatchingLabels{
		v1alpha1.RelationLabel: name,
		b.localLabel():         b.app,
	}); err != nil {
		return nil, perrors.Wrap(err, errListRelations)
	}

	items := list.Items
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].CreationTimestamp, items[j].CreationTimestamp
		if !ti.Equal(&tj) {
			return ti.Before(&tj)
		}
		return items[i].Name < items[j].Name
	})

	res := make([]Relation, 0, len(items))
	for i := range items {
		cm := &items[i]
		if !cm.DeletionTimestamp.IsZero() {
			continue
		}
		remote := cm.Labels[b.remoteLabel()]
		if remote == "" {
			continue
		}
		res = append(res, Relation{
			ID:     cm.Name,
			Name:   name,
			App:    remote,
			Local:  databagFromData(cm.Data, b.app),
			Remote: databagFromData(cm.Data, remote),
		})
	}
	return res, nil
}

func (b *ConfigMapBus) Update(ctx context.Context, rel Relation, data Databag) error {
	cm := &corev1.ConfigMap{}
	if err := b.client.Get(ctx, client.ObjectKey{Namespace: b.namespace, Name: rel.ID}, cm); err != nil {
		return perrors.Wrapf(err, "%s %s", errGetRelation, rel.ID)
	}
	if cm.Labels[b.localLabel()] != b.app {
		return perrors.Errorf("application %q is not the %s side of relation %s", b.app, b.side, rel.ID)
	}

	local := databagFromData(cm.Data, b.app)
	if !merge(local, data) {
		return nil
	}

	orig := cm.DeepCopy()
	if cm.Data == nil {
		cm.Data = make(map[string]string)
	}
	prefix := b.app + "."
	for k := range cm.Data {
		if strings.HasPrefix(k, prefix) {
			delete(cm.Data, k)
		}
	}
	for k, v := range local {
		cm.Data[prefix+k] = v
	}
	if err := b.client.Patch(ctx, cm, client.MergeFrom(orig)); err != nil {
		return perrors.Wrapf(err, "%s %s", errUpdateRelation, rel.ID)
	}
	return nil
}

// Join establishes the relation between the local requirer application and the
// provider application remote over the endpoint name. Joining an existing
// relation is a no-op.
func (b *ConfigMapBus) Join(ctx context.Context, name, remote string) (Relation, error) {
	if b.side != Requires {
		return Relation{}, perrors.Errorf("%s: only requirers can join relations", errJoinRelation)
	}

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ConfigMapName(name, remote, b.app),
			Namespace: b.namespace,
		},
	}
	_, err := controllerutil.CreateOrPatch(ctx, b.client, cm, func() error {
		if cm.Labels == nil {
			cm.Labels = make(map[string]string)
		}
		cm.Labels[v1alpha1.RelationLabel] = name
		cm.Labels[v1alpha1.ProviderLabel] = remote
		cm.Labels[v1alpha1.RequirerLabel] = b.app
		return nil
	})
	if err != nil {
		return Relation{}, perrors.Wrapf(err, "%s %s", errJoinRelation, cm.Name)
	}

	return Relation{
		ID:     cm.Name,
		Name:   name,
		App:    remote,
		Local:  databagFromData(cm.Data, b.app),
		Remote: databagFromData(cm.Data, remote),
	}, nil
}

// Leave removes the relation. Both databags are discarded with it.
func (b *ConfigMapBus) Leave(ctx context.Context, rel Relation) error {
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      rel.ID,
			Namespace: b.namespace,
		},
	}
	if err := b.client.Delete(ctx, cm); err != nil && !apierrors.IsNotFound(err) {
		return perrors.Wrapf(err, "%s %s", errLeaveRelation, rel.ID)
	}
	return nil
}

func databagFromData(data map[string]string, app string) Databag {
	prefix := app + "."
	bag := Databag{}
	for k, v := range data {
		if key, ok := strings.CutPrefix(k, prefix); ok {
			bag[key] = v
		}
	}
	return bag
}
