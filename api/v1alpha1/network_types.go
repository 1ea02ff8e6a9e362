// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package v1alpha1

// Network is a single routable IPv4 network declared by a requirer application.
// The JSON representation is the wire format of the ip-router relation.
type Network struct {
	// Network is the IPv4 network in CIDR notation, e.g. 192.168.250.0/24.
	// +required
	// +kubebuilder:validation:Pattern=`^(\d{1,3}\.){3}\d{1,3}/\d{1,2}$`
	Network string `json:"network"`

	// Gateway is the IPv4 address of the gateway. It must lie within Network.
	// +required
	// +kubebuilder:validation:Pattern=`^(\d{1,3}\.){3}\d{1,3}$`
	Gateway string `json:"gateway"`

	// Routes are the static routes reachable through this network.
	// +optional
	Routes []Route `json:"routes,omitempty"`
}

// Route is a static route of a Network.
type Route struct {
	// Destination is the IPv4 network in CIDR notation reachable through Gateway.
	// +required
	// +kubebuilder:validation:Pattern=`^(\d{1,3}\.){3}\d{1,3}/\d{1,2}$`
	Destination string `json:"destination"`

	// Gateway is the next hop. It must lie within the parent Network.
	// +required
	// +kubebuilder:validation:Pattern=`^(\d{1,3}\.){3}\d{1,3}$`
	Gateway string `json:"gateway"`
}

// RoutingTableEntry holds all networks published under one network name.
type RoutingTableEntry struct {
	// Name is the network name chosen by the requirer application.
	// +required
	Name string `json:"name"`

	// Networks accepted into the routing table for this name, in declared order.
	// +optional
	Networks []Network `json:"networks,omitempty"`
}
