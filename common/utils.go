package common

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
// Builders use it to fall back to defaults for unset configuration fields.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// CoalescePositive returns the first value greater than zero, or fallback if there is none.
//
// Parameters:
//   - fallback: the value returned when no candidate is positive
//   - values: candidates checked in order
//
// Returns:
//   - T: the first positive candidate or fallback
func CoalescePositive[T ~int | ~int64 | ~uint32 | ~uint64 | ~float32 | ~float64](fallback T, values ...T) T {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return fallback
}
