package domain

import "sort"

// ResultSet is the deduplicated set of addresses found to hold a non-zero balance.
type ResultSet map[Address]struct{}

func NewResultSet(addrs ...Address) ResultSet {
	set := make(ResultSet, len(addrs))
	for _, addr := range addrs {
		set.Add(addr)
	}
	return set
}

func (s ResultSet) Add(addr Address) {
	s[addr] = struct{}{}
}

func (s ResultSet) Contains(addr Address) bool {
	_, ok := s[addr]
	return ok
}

func (s ResultSet) Len() int {
	return len(s)
}

// Union adds every member of other to s.
func (s ResultSet) Union(other ResultSet) {
	for addr := range other {
		s[addr] = struct{}{}
	}
}

// Sorted returns the members in lexical order so emitted files are reproducible.
func (s ResultSet) Sorted() []Address {
	out := make([]Address, 0, len(s))
	for addr := range s {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
