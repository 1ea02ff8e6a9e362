// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

// Package v1alpha1 contains API Schema definitions for the iprouter.networking.metal.ironcore.dev v1alpha1 API group.
// +kubebuilder:validation:Required
// +kubebuilder:object:generate=true
// +groupName=iprouter.networking.metal.ironcore.dev
package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

var (
	// GroupVersion is group version used to register these objects.
	GroupVersion = schema.GroupVersion{Group: "iprouter.networking.metal.ironcore.dev", Version: "v1alpha1"}

	// SchemeBuilder is used to add go types to the GroupVersionKind scheme.
	SchemeBuilder = &scheme.Builder{GroupVersion: GroupVersion}

	// AddToScheme adds the types in this group-version to the given scheme.
	AddToScheme = SchemeBuilder.AddToScheme
)

// DefaultRelationName is the relation endpoint name used when none is configured.
const DefaultRelationName = "ip-router"

// WatchLabel is a label that can be applied to any ip-router API object.
//
// Controllers which allow for selective reconciliation may check this label and proceed
// with reconciliation of the object only if this label and a configured value is present.
const WatchLabel = "iprouter.networking.metal.ironcore.dev/watch-filter"

// FinalizerName is the identifier used by the controllers to perform cleanup before a resource is deleted.
// It is added when the resource is created and ensures that the controller can withdraw the data it
// published on the relation bus before Kubernetes finalizes the deletion.
const FinalizerName = "iprouter.networking.metal.ironcore.dev/finalizer"

// Labels identifying a relation ConfigMap. A relation connects exactly one provider
// application with one requirer application over a named relation endpoint.
const (
	RelationLabel = "iprouter.networking.metal.ironcore.dev/relation"
	ProviderLabel = "iprouter.networking.metal.ironcore.dev/provider"
	RequirerLabel = "iprouter.networking.metal.ironcore.dev/requirer"
)

// ReadyCondition is the top-level condition type of all ip-router resources.
const ReadyCondition = "Ready"

// Condition reasons.
const (
	// ReconcilePendingReason indicates that the reconciliation has not started yet.
	ReconcilePendingReason = "ReconcilePending"
	// ReadyReason indicates that the resource is in sync with the relation bus.
	ReadyReason = "Ready"
	// NotLeaderReason indicates that the running instance is not allowed to publish.
	NotLeaderReason = "NotLeader"
	// NoRelationReason indicates that no relation exists for the application yet.
	NoRelationReason = "NoRelation"
	// InvalidNetworksReason indicates that the requested networks failed validation.
	InvalidNetworksReason = "InvalidNetworks"
	// NetworksRejectedReason indicates that some declared networks were dropped from the routing table.
	NetworksRejectedReason = "NetworksRejected"
)
