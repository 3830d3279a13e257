package ebics

import (
	"git.taler.net/nexus/internal/domain/ebicssubscriber"
)

// orderIDSpace mirrors ebicssubscriber.Repository.NextOrderID's own
// constant: two uppercase letters followed by four digits, 26*26*10^4
// possible values.
const orderIDSpace = 26 * 26 * 10 * 10 * 10 * 10

// EncodeOrderID renders a counter value in [0, orderIDSpace) as the
// six-character alphanumeric EBICS order id (AAnnnn form). Callers get
// the counter from ebicssubscriber.Repository.NextOrderID, which
// already refuses to hand out a value at or beyond orderIDSpace.
func EncodeOrderID(n int64) (string, error) {
	if n < 0 || n >= orderIDSpace {
		return "", ebicssubscriber.ErrOrderIDOverflow{}
	}
	digits := n % 10000
	n /= 10000
	l2 := n % 26
	n /= 26
	l1 := n % 26

	out := make([]byte, 6)
	out[0] = byte('A' + l1)
	out[1] = byte('A' + l2)
	out[2] = byte('0' + (digits/1000)%10)
	out[3] = byte('0' + (digits/100)%10)
	out[4] = byte('0' + (digits/10)%10)
	out[5] = byte('0' + digits%10)
	return string(out), nil
}
