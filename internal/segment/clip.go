package segment

import "unicode/utf8"

// Ellipsis marks clipped text.
const Ellipsis = "..."

// Clip truncates s to limit characters and appends Ellipsis when it was
// longer. A non-positive limit leaves s unchanged.
func Clip(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + Ellipsis
}
