package utils

import (
	"fmt"
	"math/rand"
	"regexp"
	"time"
)

// Batch and check numbers share one generation scheme kept stable for
// compatibility with existing identifiers: a short type prefix, a 14-digit
// YYYYMMDDHHMMSS timestamp, an underscore, and a 4-digit zero-padded random
// suffix. The timestamp makes the numbers sort roughly by recency; the
// suffix makes collisions within one second negligible. Callers persisting
// a number must still regenerate on a uniqueness-constraint failure.
const (
	BatchNoPrefix = "IMP"
	CheckNoPrefix = "CHK"
)

var identifierPattern = regexp.MustCompile(`^[A-Z]{3}\d{14}_\d{4}$`)

// NewBatchNo generates an import batch number.
func NewBatchNo() string {
	return newIdentifier(BatchNoPrefix)
}

// NewCheckNo generates a check-run number.
func NewCheckNo() string {
	return newIdentifier(CheckNoPrefix)
}

func newIdentifier(prefix string) string {
	return fmt.Sprintf("%s%s_%04d", prefix, time.Now().Format("20060102150405"), rand.Intn(10000))
}

// ValidIdentifier reports whether no is a well-formed batch or check number
// with the given prefix.
func ValidIdentifier(prefix, no string) bool {
	return identifierPattern.MatchString(no) && no[:3] == prefix
}
