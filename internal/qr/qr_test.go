package qr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuestURLRoundTrip(t *testing.T) {
	link := GuestURL("https://party.example.com/", "GUEST-abc123")
	assert.Equal(t, "https://party.example.com/guest/GUEST-abc123", link)

	token, err := TokenFromText(link)
	require.NoError(t, err)
	assert.Equal(t, "GUEST-abc123", token)
}

func TestParseGuestPath(t *testing.T) {
	token, err := ParseGuestPath("/guest/GUEST-1/qr.png")
	require.NoError(t, err)
	assert.Equal(t, "GUEST-1", token)

	_, err = ParseGuestPath("/admin")
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = ParseGuestPath("/guest/")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTokenFromText(t *testing.T) {
	cases := map[string]string{
		"GUEST-xyz":            "GUEST-xyz",
		"  GUEST-xyz \n":       "GUEST-xyz",
		"/guest/GUEST-xyz":     "GUEST-xyz",
		"http://h/guest/G-1/x": "G-1",
	}
	for in, want := range cases {
		got, err := TokenFromText(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := TokenFromText("hello there")
	assert.ErrorIs(t, err, ErrNoToken)
	_, err = TokenFromText("")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestPNG(t *testing.T) {
	png, err := PNG("http://localhost/guest/GUEST-1", 128)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestTerminal(t *testing.T) {
	out, err := Terminal("http://localhost/guest/GUEST-1")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
