// Package pin generates and validates the 5-digit access codes used to
// gate owner confirmation of a booking. Codes are plain numeric strings,
// left-padded with zeros; they are a proof-of-contact mechanism, not a
// cryptographic secret, and collisions across bookings are accepted.
package pin

import "math/rand/v2"

// Length is the fixed number of digits in an access PIN.
const Length = 5

// Generate returns a uniformly random PIN in "00000".."99999".
func Generate() string {
	n := rand.IntN(100000)
	buf := [Length]byte{'0', '0', '0', '0', '0'}
	for i := Length - 1; i >= 0 && n > 0; i-- {
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[:])
}

// IsValidFormat reports whether s is exactly five ASCII digits.
func IsValidFormat(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
