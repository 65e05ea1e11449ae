// Package token provides the opaque 32-bit identities handed out for live
// TCP connections. Tokens are rendered as 8 lowercase hexadecimal digits so
// they can travel through SQL as plain text.
package token

import (
	"errors"
	"fmt"
	"strconv"
)

// Width is the number of hexadecimal digits in a rendered Token.
const Width = 8

// ErrMalformed is returned by Parse when the input is not exactly Width
// hexadecimal digits.
var ErrMalformed = errors.New("malformed token")

// Token identifies one registry entry. Equality and hashing are by numeric
// value, so Token can be used directly as a map key.
type Token uint32

// String renders the token as 8 lowercase hexadecimal digits, zero padded.
func (t Token) String() string {
	return fmt.Sprintf("%08x", uint32(t))
}

// Parse reads a token from its String form.
//
// Parameters:
//   - s: Exactly 8 hexadecimal digits (e.g. "00c0ffee")
//
// Returns:
//   - The parsed Token
//   - An error wrapping ErrMalformed if s has the wrong length or is not hex
func Parse(s string) (Token, error) {
	if len(s) != Width {
		return 0, fmt.Errorf("%w: %q must be %d hex digits", ErrMalformed, s, Width)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	return Token(v), nil
}
