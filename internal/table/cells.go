package table

import (
	"fmt"
	"strconv"
)

// normalizeCell widens the supported input kinds into the canonical cell
// kinds. Script engines hand integral numbers over as int64, so every
// integer shape collapses to float64 here.
func normalizeCell(v any) (any, error) {
	switch c := v.(type) {
	case nil, float64, string, bool:
		return c, nil
	case float32:
		return float64(c), nil
	case int:
		return float64(c), nil
	case int8:
		return float64(c), nil
	case int16:
		return float64(c), nil
	case int32:
		return float64(c), nil
	case int64:
		return float64(c), nil
	case uint:
		return float64(c), nil
	case uint8:
		return float64(c), nil
	case uint16:
		return float64(c), nil
	case uint32:
		return float64(c), nil
	case uint64:
		return float64(c), nil
	default:
		return nil, fmt.Errorf("unsupported cell value of type %T", v)
	}
}

// AsFloat reports a cell as float64. The second return is false for nil and
// non-numeric cells.
func AsFloat(cell any) (float64, bool) {
	switch c := cell.(type) {
	case float64:
		return c, true
	case int64:
		return float64(c), true
	case int:
		return float64(c), true
	default:
		return 0, false
	}
}

// AsString renders a cell for display. Floats drop the trailing ".0" that a
// plain %v of float64 would keep only sometimes; nil renders empty.
func AsString(cell any) string {
	switch c := cell.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(c)
	default:
		return fmt.Sprintf("%v", c)
	}
}

// CellsEqual compares two cells after numeric widening, so a script-side 3
// (int64) equals a host-side 3.0.
func CellsEqual(a, b any) bool {
	if af, aok := AsFloat(a); aok {
		bf, bok := AsFloat(b)
		return bok && af == bf
	}
	return a == b
}

// CompareCells ranks cells for sorting: nil first, then numbers by value,
// then strings lexically, then bools. Returns a negative, zero or positive
// int.
func CompareCells(a, b any) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		af, _ := AsFloat(a)
		bf, _ := AsFloat(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case 2:
		as, bs := a.(string), b.(string)
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
		return 0
	case 3:
		ab, bb := a.(bool), b.(bool)
		switch {
		case !ab && bb:
			return -1
		case ab && !bb:
			return 1
		}
		return 0
	}
	return 0
}

func kindRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case float64, int64, int:
		return 1
	case string:
		return 2
	case bool:
		return 3
	}
	return 4
}
