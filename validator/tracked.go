package validator

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v4"
)

// AddressSet collects validator operator addresses between two refreshes. It is safe for
// concurrent use.
type AddressSet struct {
	m *xsync.Map[string, struct{}]
}

func NewAddressSet() *AddressSet {
	return &AddressSet{m: xsync.NewMap[string, struct{}]()}
}

// Add records addrs, ignoring empty strings.
func (s *AddressSet) Add(addrs ...string) {
	for _, a := range addrs {
		if a != "" {
			s.m.Store(a, struct{}{})
		}
	}
}

func (s *AddressSet) Len() int { return s.m.Size() }

// Drain removes and returns the recorded addresses, sorted.
func (s *AddressSet) Drain() []string {
	var out []string
	s.m.Range(func(addr string, _ struct{}) bool {
		s.m.Delete(addr)
		out = append(out, addr)
		return true
	})
	sort.Strings(out)
	return out
}
