// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package iprouter

// Role determines whether the running instance of an application may publish
// authoritative state on the relation bus.
type Role int

const (
	Follower Role = iota
	Leader
)

func (r Role) String() string {
	if r == Leader {
		return "leader"
	}
	return "follower"
}

// ElectedRole returns a function reporting [Leader] once elected is closed and
// [Follower] before.
func ElectedRole(elected <-chan struct{}) func() Role {
	return func() Role {
		select {
		case <-elected:
			return Leader
		default:
			return Follower
		}
	}
}

// Outcome tells whether a write operation was applied to the bus.
type Outcome int

const (
	// Applied means the bus was updated.
	Applied Outcome = iota
	// Skipped means the operation was not performed because the instance is not the leader.
	Skipped
)

func (o Outcome) String() string {
	if o == Skipped {
		return "skipped"
	}
	return "applied"
}
