package gerber

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// decode converts a coordinate number in file units. Numbers containing a
// decimal point are read literally; otherwise they are fixed-point integers
// in format f.
func (f Format) decode(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty coordinate")
	}
	if strings.ContainsRune(s, '.') {
		return strconv.ParseFloat(s, 64)
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("coordinate has a sign but no digits")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("invalid digit %q in coordinate", s[i])
		}
	}
	if f.Zeros == OmitTrailing {
		total := f.Integer + f.Decimal
		if len(s) > total {
			return 0, fmt.Errorf("coordinate %q has more than %d digits", s, total)
		}
		s += strings.Repeat("0", total-len(s))
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	v := float64(n) / math.Pow10(f.Decimal)
	if neg {
		v = -v
	}
	return v, nil
}

// leadingInt splits s into its leading decimal integer and the remainder.
func leadingInt(s string) (int, string, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, s, false
	}
	return n, s[i:], true
}

// coordWord is the parsed data of a coordinate word such as X100Y200D01.
type coordWord struct {
	x, y, i, j             float64
	hasX, hasY, hasI, hasJ bool
	op                     int // 1, 2, 3 or 0 when absent
}

func parseCoordWord(w string, f Format) (coordWord, error) {
	var cw coordWord
	seen := map[byte]bool{}
	for len(w) > 0 {
		axis := w[0]
		switch axis {
		case 'X', 'Y', 'I', 'J', 'D':
		default:
			return cw, fmt.Errorf("unexpected %q in coordinate data", axis)
		}
		if seen[axis] {
			return cw, fmt.Errorf("repeated %c in coordinate data", axis)
		}
		seen[axis] = true
		end := 1
		for end < len(w) && strings.IndexByte("+-.0123456789", w[end]) >= 0 {
			end++
		}
		num := w[1:end]
		w = w[end:]
		if axis == 'D' {
			if w != "" {
				return cw, fmt.Errorf("data after D code")
			}
			n, rest, ok := leadingInt(num)
			if !ok || rest != "" || n < 1 || n > 3 {
				return cw, fmt.Errorf("invalid operation D%s", num)
			}
			cw.op = n
			continue
		}
		v, err := f.decode(num)
		if err != nil {
			return cw, err
		}
		switch axis {
		case 'X':
			cw.x, cw.hasX = v, true
		case 'Y':
			cw.y, cw.hasY = v, true
		case 'I':
			cw.i, cw.hasI = v, true
		case 'J':
			cw.j, cw.hasJ = v, true
		}
	}
	return cw, nil
}
