package db

import (
	"fmt"
	"math/big"
)

// ParseAmount converts a NUMERIC column scanned as text into a non-negative
// big integer. Amounts are stored in the smallest unit and routinely exceed
// the uint64 range, so NUMERIC(78,0) round-trips through text.
func ParseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("db: malformed amount %q", s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("db: negative amount %q", s)
	}
	return n, nil
}
