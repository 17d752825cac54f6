package validators

import "regexp"

var userIDPattern = regexp.MustCompile(`^\d+$`)

// UserID reports whether s is a valid Telegram numeric id, ASCII
// digits only and non-empty.
func UserID(s string) bool {
	return userIDPattern.MatchString(s)
}
