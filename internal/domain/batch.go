package domain

// Batch is a bounded group of addresses of one chain submitted to a provider in one call.
// Membership is fixed at creation.
type Batch struct {
	Chain     Chain
	Seq       int
	Addresses []Address
}

func (b Batch) Len() int {
	return len(b.Addresses)
}

// Strings returns the batch members as plain strings for request building and logging.
func (b Batch) Strings() []string {
	out := make([]string, len(b.Addresses))
	for i, addr := range b.Addresses {
		out[i] = string(addr)
	}
	return out
}
