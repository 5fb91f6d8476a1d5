// Package qr builds and parses the guest check-in links embedded in QR codes.
package qr

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// PathPrefix is the route every guest link lives under
const PathPrefix = "/guest/"

// ErrNoToken is returned when a path or text carries no guest token
var ErrNoToken = errors.New("no guest token")

// GuestURL returns the absolute check-in link for a guest token
func GuestURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + PathPrefix + url.PathEscape(token)
}

// ParseGuestPath extracts the token from a "/guest/{token}" path
func ParseGuestPath(path string) (string, error) {
	if !strings.HasPrefix(path, PathPrefix) {
		return "", ErrNoToken
	}
	rest := strings.TrimPrefix(path, PathPrefix)
	rest, _, _ = strings.Cut(rest, "/")
	token, err := url.PathUnescape(rest)
	if err != nil {
		return "", fmt.Errorf("invalid guest path %q: %w", path, err)
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// TokenFromText accepts either a bare token or a full guest link, as
// typed or pasted by a guest.
func TokenFromText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoToken
	}
	if strings.Contains(text, "://") {
		u, err := url.Parse(text)
		if err != nil {
			return "", fmt.Errorf("invalid guest link: %w", err)
		}
		return ParseGuestPath(u.Path)
	}
	if strings.HasPrefix(text, PathPrefix) {
		return ParseGuestPath(text)
	}
	if strings.ContainsAny(text, " \t\n") {
		return "", ErrNoToken
	}
	return text, nil
}

// PNG renders link as a QR code image of size x size pixels
func PNG(link string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}
	return png, nil
}

// Terminal renders link as a QR code made of block characters
func Terminal(link string) (string, error) {
	q, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	return q.ToSmallString(false), nil
}
