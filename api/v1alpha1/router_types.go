// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// RouterSpec defines the desired state of Router
type RouterSpec struct {
	// AppName is the name of the provider application on the relation bus.
	// Defaults to the name of the Router.
	//
	// +optional
	// +kubebuilder:validation:MaxLength=63
	// +kubebuilder:validation:Pattern=`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`
	AppName string `json:"appName,omitempty"`

	// RelationName is the relation endpoint the router listens on.
	// All requirers integrated over this endpoint are merged into one routing table.
	//
	// +optional
	// +kubebuilder:default="ip-router"
	// +kubebuilder:validation:MaxLength=63
	RelationName string `json:"relationName,omitempty"`
}

// RouterStatus defines the observed state of Router.
type RouterStatus struct {
	// The conditions are a list of status objects that describe the state of the Router.
	//+listType=map
	//+listMapKey=type
	//+patchStrategy=merge
	//+patchMergeKey=type
	//+optional
	Conditions []metav1.Condition `json:"conditions,omitempty" patchStrategy:"merge" patchMergeKey:"type"`

	// RoutingTable is the merged routing table last published to the requirers.
	//+listType=map
	//+listMapKey=name
	//+optional
	RoutingTable []RoutingTableEntry `json:"routingTable,omitempty"`

	// Relations is the number of relations the routing table was published to.
	// +optional
	Relations int32 `json:"relations,omitempty"`

	// RejectedNetworks is the number of declared networks dropped during the last merge.
	// +optional
	RejectedNetworks int32 `json:"rejectedNetworks,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:path=routers
// +kubebuilder:resource:singular=router
// +kubebuilder:printcolumn:name="Relation",type=string,JSONPath=`.spec.relationName`
// +kubebuilder:printcolumn:name="Relations",type=integer,JSONPath=`.status.relations`
// +kubebuilder:printcolumn:name="Rejected",type=integer,JSONPath=`.status.rejectedNetworks`
// +kubebuilder:printcolumn:name="Ready",type=string,JSONPath=`.status.conditions[?(@.type=="Ready")].status`
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"

// Router is the Schema for the routers API. A Router represents the provider side
// of the ip-router relation.
type Router struct {
	metav1.TypeMeta `json:",inline"`

	// metadata is a standard object metadata
	// +optional
	metav1.ObjectMeta `json:"metadata,omitempty,omitzero"`

	// spec defines the desired state of Router
	// +required
	Spec RouterSpec `json:"spec"`

	// status defines the observed state of Router
	// +optional
	Status RouterStatus `json:"status,omitempty,omitzero"`
}

// GetAppName returns the provider application name of the router.
func (r *Router) GetAppName() string {
	if r.Spec.AppName != "" {
		return r.Spec.AppName
	}
	return r.Name
}

// GetRelationName returns the relation endpoint name of the router.
func (r *Router) GetRelationName() string {
	if r.Spec.RelationName != "" {
		return r.Spec.RelationName
	}
	return DefaultRelationName
}

// +kubebuilder:object:root=true

// RouterList contains a list of Router
type RouterList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Router `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Router{}, &RouterList{})
}
