// Package roster tracks the set of registered party members. Membership is
// permanent: an identity, once added, is never removed.
package roster

import "github.com/ethereum/go-ethereum/common"

// Roster is an insertion-ordered set of member addresses. It is not safe for
// concurrent use; the engine that owns it serializes access.
type Roster struct {
	members map[common.Address]struct{}
	order   []common.Address
}

// New returns an empty roster.
func New() *Roster {
	return &Roster{
		members: make(map[common.Address]struct{}),
	}
}

// Add registers addr. It reports false if addr was already a member.
func (r *Roster) Add(addr common.Address) bool {
	if _, ok := r.members[addr]; ok {
		return false
	}
	r.members[addr] = struct{}{}
	r.order = append(r.order, addr)
	return true
}

// Contains reports whether addr is a member.
func (r *Roster) Contains(addr common.Address) bool {
	_, ok := r.members[addr]
	return ok
}

// Len returns the number of members.
func (r *Roster) Len() int {
	return len(r.order)
}

// Members returns the members in registration order. The returned slice is a
// copy.
func (r *Roster) Members() []common.Address {
	out := make([]common.Address, len(r.order))
	copy(out, r.order)
	return out
}
