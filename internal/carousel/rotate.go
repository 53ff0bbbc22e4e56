package carousel

// Rotate returns a copy of items starting at the first element matching
// pred, with the elements before it moved to the end. Without a match the
// copy keeps the original order.
func Rotate[T any](items []T, pred func(T) bool) []T {
	out := make([]T, 0, len(items))
	start := 0
	if pred != nil {
		for i, it := range items {
			if pred(it) {
				start = i
				break
			}
		}
	}
	out = append(out, items[start:]...)
	return append(out, items[:start]...)
}
