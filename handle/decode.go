// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package handle

import (
	"fmt"
	"math/big"
)

var one = big.NewInt(1)

// DecodeBool maps a decrypted ebool to true only when it equals 1.
func DecodeBool(v *big.Int) bool {
	return v != nil && v.Cmp(one) == 0
}

// FormatAddress renders a decrypted eaddress as 0x followed by at least 40
// lowercase hex digits.
func FormatAddress(v *big.Int) string {
	if v == nil {
		v = new(big.Int)
	}
	return fmt.Sprintf("0x%040x", v)
}
