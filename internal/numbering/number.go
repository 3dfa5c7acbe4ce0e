package numbering

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is a patient-number namespace. Each category has its own
// counter and its own pool of reusable sequences.
type Category string

const (
	Validated          Category = "validated"
	PendingOrCancelled Category = "pending_or_cancelled"
	Deleted            Category = "deleted"
)

// NoNumber is the rendered value for a patient holding no number.
const NoNumber = "-"

// Categories lists every category in a stable order.
var Categories = []Category{Validated, PendingOrCancelled, Deleted}

func (c Category) Prefix() string {
	switch c {
	case Validated:
		return "P"
	case PendingOrCancelled:
		return "PA"
	case Deleted:
		return "PS"
	default:
		return ""
	}
}

func (c Category) Valid() bool {
	return c.Prefix() != ""
}

// Number is a (category, sequence) pair such as PA0003.
type Number struct {
	Category Category
	Seq      int
}

func (n Number) String() string {
	return fmt.Sprintf("%s%04d", n.Category.Prefix(), n.Seq)
}

// ParseNumber parses a rendered number. The two-letter prefixes are tried
// before "P" so that PA0003 is not read as P with a malformed suffix.
func ParseNumber(s string) (Number, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == NoNumber {
		return Number{}, false
	}

	for _, cat := range []Category{PendingOrCancelled, Deleted, Validated} {
		prefix := cat.Prefix()
		if !strings.HasPrefix(s, prefix) {
			continue
		}
		digits := s[len(prefix):]
		if digits == "" || !isDigits(digits) {
			continue
		}
		seq, err := strconv.Atoi(digits)
		if err != nil || seq < 1 {
			return Number{}, false
		}
		return Number{Category: cat, Seq: seq}, true
	}

	return Number{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
