package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFirstURL(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"PlainLink", "https://vk.com/video-111_222", "https://vk.com/video-111_222"},
		{"LinkInsideSentence", "глянь https://vk.com/clip123 пожалуйста", "https://vk.com/clip123"},
		{"HTTPLink", "http://vk.com/video1", "http://vk.com/video1"},
		{"TwoLinksFirstWins", "https://vk.com/a https://vk.com/b", "https://vk.com/a"},
		{"NoLink", "просто текст", ""},
		{"BareDomain", "vk.com/video-111_222", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractFirstURL(tc.text))
		})
	}
}

func TestIsVKURL(t *testing.T) {
	assert.True(t, IsVKURL("https://vk.com/video-111_222"))
	assert.True(t, IsVKURL("https://m.vk.com/video-111_222"))
	assert.False(t, IsVKURL("https://youtube.com/watch?v=x"))
}

func TestIsCancelKeyword(t *testing.T) {
	tests := []struct {
		text     string
		expected bool
	}{
		{"стоп", true},
		{"Стоп", true},
		{"STOP", true},
		{"  cancel  ", true},
		{"стоп пожалуйста", false},
		{"продолжай", false},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equalf(t, tc.expected, IsCancelKeyword(tc.text), "text: %q", tc.text)
	}
}

func TestValidateCookieFile(t *testing.T) {
	netscape := "# Netscape HTTP Cookie File\n# https://curl.se/docs/http-cookies.html\n"
	vkDomain := ".vk.com\tTRUE\t/\tTRUE\t0\tremixsid\tabc123\n"

	assert.True(t, ValidateCookieFile(netscape))
	assert.True(t, ValidateCookieFile(vkDomain))
	assert.True(t, ValidateCookieFile("login.vk.com\tFALSE\t/\tTRUE\t0\tp\tq"))
	assert.False(t, ValidateCookieFile("just some random text"))
	assert.False(t, ValidateCookieFile(""))
}

func TestParseStartPayload(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int64
	}{
		{"GroupPayload", "/start chat_-1002824956071", -1002824956071},
		{"PositiveChat", "/start chat_12345", 12345},
		{"NoPayload", "/start", 0},
		{"ForeignPayload", "/start form", 0},
		{"MalformedID", "/start chat_abc", 0},
		{"EmptyPayload", "/start ", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseStartPayload(tc.text))
		})
	}
}
