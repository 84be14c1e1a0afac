package utils

import (
	"strings"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
)

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "a &amp;&amp; b", EscapeHTML("a && b"))
	assert.Equal(t, "&lt;b&gt;bold&lt;/b&gt;", EscapeHTML("<b>bold</b>"))
	assert.Equal(t, "обычный текст", EscapeHTML("обычный текст"))
}

func TestMention(t *testing.T) {
	t.Run("Username", func(t *testing.T) {
		user := &telego.User{ID: 1, Username: "someone", FirstName: "Имя"}
		assert.Equal(t, "@someone", Mention(user))
	})

	t.Run("FirstNameLink", func(t *testing.T) {
		user := &telego.User{ID: 42, FirstName: "Ваня <3"}
		assert.Equal(t, "<a href='tg://user?id=42'>Ваня &lt;3</a>", Mention(user))
	})

	t.Run("NoNames", func(t *testing.T) {
		user := &telego.User{ID: 42}
		assert.Equal(t, "<a href='tg://user?id=42'>Участник</a>", Mention(user))
	})

	t.Run("NilUser", func(t *testing.T) {
		assert.Equal(t, "Участник", Mention(nil))
	})
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", TruncateRunes("short", 10))
	assert.Equal(t, "абв", TruncateRunes("абвгд", 3), "truncation counts runes, not bytes")
	assert.Equal(t, "", TruncateRunes("", 5))

	long := strings.Repeat("я", 1000)
	assert.Equal(t, 900, len([]rune(TruncateRunes(long, 900))))
}
