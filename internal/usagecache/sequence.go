package usagecache

// sequence is the epoch counter of one logical fetch stream. A response may only
// mutate state if the sequence it captured is still current on arrival.
type sequence struct {
	n uint64
}

// next starts a new request and returns its sequence number.
func (s *sequence) next() uint64 {
	s.n++
	return s.n
}

// current returns the latest issued sequence number without advancing it.
func (s *sequence) current() uint64 {
	return s.n
}

// isCurrent reports whether n is still the latest request of the stream.
func (s *sequence) isCurrent(n uint64) bool {
	return s.n == n
}
