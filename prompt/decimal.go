package prompt

import (
	"math"
	"strconv"
	"strings"
)

// oneDecimal renders v with one fractional digit, rounding the shortest
// decimal form of v half away from zero: 6.25 becomes "6.3" and 2.25 "2.3".
func oneDecimal(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	digits := strconv.FormatFloat(math.Abs(v), 'f', -1, 64)
	intPart, frac, _ := strings.Cut(digits, ".")
	frac += "00"

	tenths, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	tenths = tenths*10 + int64(frac[0]-'0')
	if frac[1] >= '5' {
		tenths++
	}

	sign := ""
	if v < 0 && tenths != 0 {
		sign = "-"
	}
	return sign + strconv.FormatInt(tenths/10, 10) + "." + strconv.FormatInt(tenths%10, 10)
}
