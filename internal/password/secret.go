// Package password resolves credentials from the environment the process
// runs in, and wraps them so they can be zeroed and never logged.
package password

import (
	"fmt"
	"io"
)

// Secret holds an ephemeral credential. It redacts itself under every
// formatting path so a stray log line can't leak it, and Zero overwrites
// the backing bytes when the attempt that requested it is done.
type Secret struct {
	buf []byte
}

// NewSecret wraps a credential string.
func NewSecret(s string) *Secret {
	return &Secret{buf: []byte(s)}
}

// Value returns the credential. Callers must not retain the string past
// the attempt they resolved it for.
func (s *Secret) Value() string {
	if s == nil {
		return ""
	}
	return string(s.buf)
}

// IsEmpty reports whether the secret holds nothing.
func (s *Secret) IsEmpty() bool {
	return s == nil || len(s.buf) == 0
}

// Zero overwrites the backing bytes. Safe to call repeatedly and on nil.
func (s *Secret) Zero() {
	if s == nil {
		return
	}
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.buf = s.buf[:0]
}

// String redacts the secret for fmt.Print* convenience.
func (s *Secret) String() string { return "[REDACTED]" }

// Format implements fmt.Formatter so %v, %s, and %#v stay redacted.
func (s *Secret) Format(f fmt.State, c rune) {
	_, _ = io.WriteString(f, "[REDACTED]")
}

// MarshalJSON redacts the secret in JSON output.
func (s *Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}
