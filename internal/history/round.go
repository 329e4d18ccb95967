package history

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Precision holds how many decimal digits each kind of field keeps when
// encoded. It only bounds storage size; restored objects drift by at most half
// a unit in the last kept digit.
type Precision struct {
	Position int
	Rotation int
	Size     int
}

var DefaultPrecision = Precision{Position: 1, Rotation: 3, Size: 2}

// Round rounds v to digits decimal places, half away from zero. It works on
// the shortest decimal form of v, so 52.345 becomes 52.35 even though the
// nearest float64 is slightly below it.
func Round(v float64, digits int) float64 {
	if digits < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	if len(frac) <= digits {
		return v
	}

	n, ok := new(big.Int).SetString(intPart+frac[:digits], 10)
	if !ok {
		return v
	}
	if frac[digits] >= '5' {
		n.Add(n, big.NewInt(1))
	}

	out := n.String()
	if digits > 0 {
		if len(out) <= digits {
			out = strings.Repeat("0", digits-len(out)+1) + out
		}
		out = out[:len(out)-digits] + "." + out[len(out)-digits:]
	}

	r, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return v
	}
	if r == 0 {
		return 0
	}
	if neg {
		r = -r
	}
	return r
}
