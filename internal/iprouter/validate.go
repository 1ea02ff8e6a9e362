// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package iprouter

import (
	"fmt"
	"net/netip"

	"github.com/henderiw/iputil"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
)

// Validate checks a single network against the networks already accepted into a routing table.
//
// The gateway and every route gateway must lie within the network, and the network must
// neither equal nor contain nor be contained in any accepted network. The outcome depends
// on the content of accepted: of two overlapping networks the one validated first wins.
func Validate(candidate v1alpha1.Network, accepted *RoutingTable) error {
	if candidate.Gateway == "" {
		return missing("gateway")
	}
	if candidate.Network == "" {
		return missing("network")
	}

	network, err := parseNetwork("network", candidate.Network)
	if err != nil {
		return err
	}
	gateway, err := parseAddress("gateway", candidate.Gateway)
	if err != nil {
		return err
	}
	if !network.Contains(gateway) {
		return &ValidationError{
			Reason:  ContainmentError,
			Field:   "gateway",
			Value:   candidate.Gateway,
			Message: fmt.Sprintf("gateway is not within network %s", network),
		}
	}

	for i, route := range candidate.Routes {
		if route.Gateway == "" {
			return missing(fmt.Sprintf("routes[%d].gateway", i))
		}
		if route.Destination == "" {
			return missing(fmt.Sprintf("routes[%d].destination", i))
		}
		if _, err := parseNetwork(fmt.Sprintf("routes[%d].destination", i), route.Destination); err != nil {
			return err
		}
		gw, err := parseAddress(fmt.Sprintf("routes[%d].gateway", i), route.Gateway)
		if err != nil {
			return err
		}
		if !network.Contains(gw) {
			return &ValidationError{
				Reason:  ContainmentError,
				Field:   fmt.Sprintf("routes[%d].gateway", i),
				Value:   route.Gateway,
				Message: fmt.Sprintf("there is no route to destination %s from network %s", route.Destination, network),
			}
		}
	}

	var conflict error
	accepted.Each(func(name string, existing v1alpha1.Network) bool {
		prefix, err := parseNetwork("network", existing.Network)
		if err != nil {
			// Entries of a table are validated on insertion.
			return true
		}
		// Both prefixes are masked, so they overlap only if one contains the other.
		if prefix.Overlaps(network) {
			conflict = &ValidationError{
				Reason:  ConflictError,
				Field:   "network",
				Value:   candidate.Network,
				Message: fmt.Sprintf("network overlaps %s defined in a previous entry of %q", existing.Network, name),
			}
			return false
		}
		return true
	})
	return conflict
}

// ValidateRequest validates the networks of a single request. Every network is checked
// against existing and against all networks following it in the request.
func ValidateRequest(networks []v1alpha1.Network, existing *RoutingTable) error {
	for i, n := range networks {
		if err := Validate(n, existing); err != nil {
			return fmt.Errorf("networks[%d]: %w", i, err)
		}
		others := NewRoutingTable()
		others.Set("other-requested-networks", networks[i+1:])
		if err := Validate(n, others); err != nil {
			return fmt.Errorf("networks[%d]: %w", i, err)
		}
	}
	return nil
}

// parseNetwork parses an IPv4 network in CIDR notation. Host bits must not be set.
func parseNetwork(field, s string) (netip.Prefix, error) {
	pi, err := iputil.New(s)
	if err != nil {
		return netip.Prefix{}, &ValidationError{Reason: ParseError, Field: field, Value: s, Message: err.Error()}
	}
	if !pi.IsIpv4() {
		return netip.Prefix{}, &ValidationError{Reason: ParseError, Field: field, Value: s, Message: "not an IPv4 network"}
	}
	if pi.Masked() != pi.Prefix {
		return netip.Prefix{}, &ValidationError{Reason: ParseError, Field: field, Value: s, Message: "host bits set"}
	}
	return pi.Prefix, nil
}

func parseAddress(field, s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, &ValidationError{Reason: ParseError, Field: field, Value: s, Message: err.Error()}
	}
	if !addr.Is4() {
		return netip.Addr{}, &ValidationError{Reason: ParseError, Field: field, Value: s, Message: "not an IPv4 address"}
	}
	return addr, nil
}
