package backend

import "math/big"

var one = big.NewInt(1)

// NextVersion returns the version that follows current. An empty or
// non-numeric current value counts as unset, and the first version is "1".
// Numbers of any size are bumped exactly.
func NextVersion(current string) string {
	n, ok := new(big.Int).SetString(current, 10)
	if !ok {
		return "1"
	}
	return n.Add(n, one).String()
}
