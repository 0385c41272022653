package order

import (
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// suffixAlphabet has 32 upper-case symbols without the look-alikes 0, 1, I and O.
const suffixAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// NumberGenerator returns a new human-readable order number.
type NumberGenerator func() string

// NewNumberGenerator returns a generator of numbers shaped
// ORD-<base36 millis>-<6 random chars>. Each suffix char carries 5 bits.
func NewNumberGenerator(now func() time.Time) NumberGenerator {
	return func() string {
		ts := strings.ToUpper(strconv.FormatInt(now().UnixMilli(), 36))
		// The leading char of an encoded uuid is not uniformly distributed.
		suffix := shortuuid.NewWithAlphabet(suffixAlphabet)[1:7]
		return "ORD-" + ts + "-" + suffix
	}
}
