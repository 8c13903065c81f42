// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package rows

import (
	"fmt"
	"time"
)

// Compare orders two scalar values of a monotonic column. It returns a
// negative, zero, or positive result like strings.Compare. Integers and
// decimals compare across kinds; strings compare lexically; timestamps
// compare chronologically. Nil values and string arrays have no ordering
// and produce an error, as do mismatched kinds.
func Compare(a, b any) (int, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("cannot order nil value")
	}

	if ai, ok := normalizeInt(a); ok {
		if bi, ok := normalizeInt(b); ok {
			switch {
			case ai < bi:
				return -1, nil
			case ai > bi:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	if af, ok := normalizeFloat(a); ok {
		if bf, ok := normalizeFloat(b); ok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1, nil
			case av > bv:
				return 1, nil
			default:
				return 0, nil
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1, nil
			case av.After(bv):
				return 1, nil
			default:
				return 0, nil
			}
		}
	}

	return 0, fmt.Errorf("cannot order %T against %T", a, b)
}

// Equal reports value equality across the supported scalar kinds.
// Unlike Compare it tolerates nil (nil equals only nil) and string arrays
// (element-wise comparison). Mismatched kinds are simply unequal.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if as, ok := a.([]string); ok {
		bs, ok := b.([]string)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}

	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}

	cmp, err := Compare(a, b)
	if err != nil {
		return false
	}
	return cmp == 0
}

// normalizeInt widens the integer family to int64. Floats are excluded so
// that 1.5 never silently truncates to 1.
func normalizeInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

// normalizeFloat widens numerics to float64, accepting integers so that
// decimal columns can compare against integer literals from the source.
func normalizeFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		if i, ok := normalizeInt(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}
