package store

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikeEscape escapes LIKE metacharacters in user input using backslash, the
// Postgres default escape character.
func LikeEscape(value string) string {
	return likeEscaper.Replace(value)
}

// LikeContains builds a substring LIKE pattern from user input.
func LikeContains(value string) string {
	return "%" + LikeEscape(value) + "%"
}
