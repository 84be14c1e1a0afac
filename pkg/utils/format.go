package utils

import (
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
)

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeHTML escapes the characters Telegram's HTML parse mode treats specially.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// Mention builds an HTML mention for a user: @username when available,
// otherwise a clickable tg://user link on the first name.
func Mention(user *telego.User) string {
	if user == nil {
		return "Участник"
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	first := user.FirstName
	if first == "" {
		first = "Участник"
	}
	return fmt.Sprintf("<a href='tg://user?id=%d'>%s</a>", user.ID, EscapeHTML(first))
}

// TruncateRunes shortens s to at most n runes.
func TruncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
