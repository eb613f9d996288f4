package limiter

import "encoding/binary"

// keySep separates key parts. The unit separator cannot appear in
// well-formed UTF-8 text fields, so composite keys never collide with
// each other or with single-part keys.
const keySep = '\x1f'

// Key builds an encoded key from string parts. Multi-part keys let a
// caller scope subjects, for example Key("tenant-7", "api", "PUT").
func Key(parts ...string) []byte {
	if len(parts) == 0 {
		return []byte{}
	}
	n := len(parts) - 1
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			out = append(out, keySep)
		}
		out = append(out, p...)
	}
	return out
}

// KeyUint64 encodes v as 8 big-endian bytes, preserving numeric order
// in the encoded form.
func KeyUint64(v uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return out
}
