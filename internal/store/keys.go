package store

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/locshare/locshare/pkg/core"
)

// ErrBadKey is returned when a store key does not match the
// /<namespace>/<identifier> schema.
var ErrBadKey = errors.New("malformed store key")

// Key builds the store key for an identifier. Identifiers are URL-escaped
// so arbitrary strings (phone numbers with '+', names with '/') stay within
// one path segment.
func Key(namespace string, id core.Identifier) string {
	return "/" + namespace + "/" + url.PathEscape(string(id))
}

// ParseKey splits a store key back into namespace and identifier.
func ParseKey(key string) (string, core.Identifier, error) {
	if !strings.HasPrefix(key, "/") {
		return "", "", ErrBadKey
	}
	parts := strings.SplitN(key[1:], "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrBadKey
	}
	id, err := url.PathUnescape(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	return parts[0], core.Identifier(id), nil
}
