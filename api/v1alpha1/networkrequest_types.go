// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// NetworkRequestSpec defines the desired state of NetworkRequest
type NetworkRequestSpec struct {
	// AppName is the name of the requirer application on the relation bus.
	// Defaults to the name of the NetworkRequest.
	//
	// +optional
	// +kubebuilder:validation:MaxLength=63
	// +kubebuilder:validation:Pattern=`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`
	AppName string `json:"appName,omitempty"`

	// RelationName is the relation endpoint used to reach the router.
	//
	// +optional
	// +kubebuilder:default="ip-router"
	// +kubebuilder:validation:MaxLength=63
	RelationName string `json:"relationName,omitempty"`

	// NetworkName is the name the networks are published under in the routing table.
	// Must be unique across all requirers of the router. Defaults to the application name.
	//
	// +optional
	// +kubebuilder:validation:MaxLength=253
	NetworkName *string `json:"networkName,omitempty"`

	// RouterRef is the provider application to integrate with. If set, the relation
	// is created when missing and removed when the NetworkRequest is deleted.
	//
	// +optional
	// +kubebuilder:validation:MaxLength=63
	// +kubebuilder:validation:Pattern=`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`
	RouterRef *string `json:"routerRef,omitempty"`

	// Networks requested from the router. Every call replaces the previously requested networks.
	//
	// +required
	// +kubebuilder:validation:MinItems=1
	Networks []Network `json:"networks"`
}

// NetworkRequestStatus defines the observed state of NetworkRequest.
type NetworkRequestStatus struct {
	// The conditions are a list of status objects that describe the state of the NetworkRequest.
	//+listType=map
	//+listMapKey=type
	//+patchStrategy=merge
	//+patchMergeKey=type
	//+optional
	Conditions []metav1.Condition `json:"conditions,omitempty" patchStrategy:"merge" patchMergeKey:"type"`

	// NetworkName is the name the networks were last published under.
	// +optional
	NetworkName string `json:"networkName,omitempty"`

	// RoutingTable is the routing table as published by the router, after validation.
	//+listType=map
	//+listMapKey=name
	//+optional
	RoutingTable []RoutingTableEntry `json:"routingTable,omitempty"`

	// AvailableNetworks is the flattened list of all networks known to the router.
	// +optional
	AvailableNetworks []Network `json:"availableNetworks,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:path=networkrequests
// +kubebuilder:resource:singular=networkrequest
// +kubebuilder:resource:shortName=netreq
// +kubebuilder:printcolumn:name="Network Name",type=string,JSONPath=`.status.networkName`
// +kubebuilder:printcolumn:name="Ready",type=string,JSONPath=`.status.conditions[?(@.type=="Ready")].status`
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"

// NetworkRequest is the Schema for the networkrequests API. A NetworkRequest represents
// the requirer side of the ip-router relation.
type NetworkRequest struct {
	metav1.TypeMeta `json:",inline"`

	// metadata is a standard object metadata
	// +optional
	metav1.ObjectMeta `json:"metadata,omitempty,omitzero"`

	// spec defines the desired state of NetworkRequest
	// +required
	Spec NetworkRequestSpec `json:"spec"`

	// status defines the observed state of NetworkRequest
	// +optional
	Status NetworkRequestStatus `json:"status,omitempty,omitzero"`
}

// GetAppName returns the requirer application name.
func (n *NetworkRequest) GetAppName() string {
	if n.Spec.AppName != "" {
		return n.Spec.AppName
	}
	return n.Name
}

// GetRelationName returns the relation endpoint name.
func (n *NetworkRequest) GetRelationName() string {
	if n.Spec.RelationName != "" {
		return n.Spec.RelationName
	}
	return DefaultRelationName
}

// GetNetworkName returns the network name to publish under.
func (n *NetworkRequest) GetNetworkName() string {
	if n.Spec.NetworkName != nil && *n.Spec.NetworkName != "" {
		return *n.Spec.NetworkName
	}
	return n.GetAppName()
}

// +kubebuilder:object:root=true

// NetworkRequestList contains a list of NetworkRequest
type NetworkRequestList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []NetworkRequest `json:"items"`
}

func init() {
	SchemeBuilder.Register(&NetworkRequest{}, &NetworkRequestList{})
}
