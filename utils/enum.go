package utils

// CycleEnumPtr steps an enum-typed tab selector forward or backward,
// wrapping at the ends.
func CycleEnumPtr[T ~int](current *T, direction int, max T) {
	*current = (*current + T(direction) + max + 1) % (max + 1)
}
