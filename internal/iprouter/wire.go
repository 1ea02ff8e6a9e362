// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package iprouter

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
	"github.com/ironcore-dev/ip-router-operator/internal/relation"
)

// Databag keys of the ip-router relation.
const (
	// NetworksKey holds a JSON array of networks in a requirer databag and the
	// JSON encoded routing table in a provider databag.
	NetworksKey = "networks"
	// NetworkNameKey holds the network name chosen by a requirer.
	NetworkNameKey = "network-name"
)

var errNotAList = errors.New("payload is not a JSON list")

// Declaration is the set of networks one requirer application asks for.
type Declaration struct {
	// App is the requirer application.
	App string
	// Name is the network name the networks are published under.
	Name string
	// Networks are the decoded networks in declared order.
	Networks []v1alpha1.Network
	// Malformed holds an error for every entry that could not be decoded.
	Malformed []error
	// Err is set if the payload as a whole could not be decoded.
	Err error
}

// Empty reports whether the declaration does not contain any entries.
func (d Declaration) Empty() bool {
	return len(d.Networks) == 0 && len(d.Malformed) == 0
}

// DeclarationFrom reads the declaration of the remote requirer application of rel.
func DeclarationFrom(rel relation.Relation) Declaration {
	decl := Declaration{
		App:  rel.App,
		Name: rel.Remote[NetworkNameKey],
	}
	payload, ok := rel.Remote[NetworksKey]
	if !ok {
		return decl
	}
	decl.Networks, decl.Malformed, decl.Err = decodeNetworks(payload)
	return decl
}

// decodeNetworks decodes a JSON array of networks. Entries that cannot be decoded are
// reported individually and do not affect the remaining entries.
func decodeNetworks(payload string) ([]v1alpha1.Network, []error, error) {
	if !gjson.Valid(payload) {
		return nil, nil, &ValidationError{Reason: ParseError, Field: NetworksKey, Message: "invalid JSON"}
	}
	res := gjson.Parse(payload)
	if !res.IsArray() {
		return nil, nil, &ValidationError{Reason: ParseError, Field: NetworksKey, Message: errNotAList.Error()}
	}

	var (
		networks  []v1alpha1.Network
		malformed []error
	)
	for i, entry := range res.Array() {
		n, err := decodeNetwork(entry)
		if err != nil {
			malformed = append(malformed, fmt.Errorf("%s[%d]: %w", NetworksKey, i, err))
			continue
		}
		networks = append(networks, n)
	}
	return networks, malformed, nil
}

func decodeNetwork(entry gjson.Result) (v1alpha1.Network, error) {
	var n v1alpha1.Network
	if !entry.IsObject() {
		return n, &ValidationError{Reason: ParseError, Field: "network", Value: entry.Raw, Message: "entry is not a JSON object"}
	}
	if err := json.Unmarshal([]byte(entry.Raw), &n); err != nil {
		return n, &ValidationError{Reason: ParseError, Field: "network", Value: entry.Raw, Message: err.Error()}
	}
	return n, nil
}

// publishedEntry is one name of a routing table as published by a provider.
type publishedEntry struct {
	name      string
	networks  []v1alpha1.Network
	malformed []error
}

// decodePublished decodes the routing table published by a provider, keeping the order
// of names. It fails if the payload is not a JSON object.
func decodePublished(payload string) ([]publishedEntry, error) {
	if !gjson.Valid(payload) {
		return nil, &ValidationError{Reason: ParseError, Field: NetworksKey, Message: "invalid JSON"}
	}
	res := gjson.Parse(payload)
	if !res.IsObject() {
		return nil, &ValidationError{Reason: ParseError, Field: NetworksKey, Message: "payload is not a JSON object"}
	}

	var entries []publishedEntry
	res.ForEach(func(key, value gjson.Result) bool {
		entry := publishedEntry{name: key.String()}
		if !value.IsArray() {
			entry.malformed = append(entry.malformed, fmt.Errorf("%s[%q]: %w", NetworksKey, entry.name, errNotAList))
			entries = append(entries, entry)
			return true
		}
		for i, raw := range value.Array() {
			n, err := decodeNetwork(raw)
			if err != nil {
				entry.malformed = append(entry.malformed, fmt.Errorf("%s[%q][%d]: %w", NetworksKey, entry.name, i, err))
				continue
			}
			entry.networks = append(entry.networks, n)
		}
		entries = append(entries, entry)
		return true
	})
	return entries, nil
}

func encodeNetworks(networks []v1alpha1.Network) (string, error) {
	if networks == nil {
		networks = []v1alpha1.Network{}
	}
	b, err := json.Marshal(networks)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func encodeTable(t *RoutingTable) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
