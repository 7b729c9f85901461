package domain

// AddressBook is the per-chain address snapshot loaded at the start of a cycle.
type AddressBook map[Chain][]Address

func (b AddressBook) Add(chain Chain, addr Address) {
	b[chain] = append(b[chain], addr)
}

// Total counts addresses across chains, duplicates included.
func (b AddressBook) Total() int {
	total := 0
	for _, addrs := range b {
		total += len(addrs)
	}
	return total
}
