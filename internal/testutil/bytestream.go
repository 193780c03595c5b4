package testutil

import "time"

// ByteStream derives values from fuzz input. Once the input is exhausted
// every read returns zero, so a given input always yields the same values.
type ByteStream struct {
	bytes []byte
	pos   int
}

// NewByteStream creates a stream over b.
func NewByteStream(b []byte) *ByteStream {
	return &ByteStream{bytes: b}
}

// HasMore reports whether unread bytes remain.
func (s *ByteStream) HasMore() bool {
	return s.pos < len(s.bytes)
}

// NextByte returns the next byte, or 0 if exhausted.
func (s *ByteStream) NextByte() byte {
	if s.pos >= len(s.bytes) {
		return 0
	}

	v := s.bytes[s.pos]
	s.pos++

	return v
}

// NextInt returns a value in [0, maxVal).
func (s *ByteStream) NextInt(maxVal int) int {
	if maxVal <= 0 {
		return 0
	}

	return int(s.NextByte()) % maxVal
}

// NextKey returns one of n keys named k0..k(n-1).
func (s *ByteStream) NextKey(n int) string {
	return "k" + string(rune('0'+s.NextInt(min(n, 10))))
}

// NextDuration returns a whole number of minutes in [0, maxMinutes).
func (s *ByteStream) NextDuration(maxMinutes int) time.Duration {
	return time.Duration(s.NextInt(maxMinutes)) * time.Minute
}
