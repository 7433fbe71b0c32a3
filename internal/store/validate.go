package store

import (
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrURLRequired is returned when a bookmark is created without a url.
	ErrURLRequired = errors.New("url is required")

	// ErrURLInvalid is returned when a bookmark url is not an absolute URI.
	ErrURLInvalid = errors.New("url must be an absolute URI")

	// ErrTagNameRequired is returned when a tag name is blank.
	ErrTagNameRequired = errors.New("tag name is required")

	// ErrUsageKindInvalid is returned for an unknown usage counter kind.
	ErrUsageKindInvalid = errors.New("usage kind must be one of: bookmarks, tags")
)

// ValidateBookmarkURL checks that raw is a non-empty absolute URI. The url
// is stored exactly as given; no normalization happens here or anywhere else.
func ValidateBookmarkURL(raw string) error {
	if raw == "" {
		return ErrURLRequired
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return ErrURLInvalid
	}
	return nil
}

// NormalizeTagName trims surrounding whitespace and rejects blank names.
func NormalizeTagName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrTagNameRequired
	}
	return name, nil
}

// TagNameKey is the case-insensitive comparison key for tag names.
func TagNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateUsageKind checks that kind names a known counter.
func ValidateUsageKind(kind string) error {
	switch kind {
	case UsageBookmarks, UsageTags:
		return nil
	default:
		return ErrUsageKindInvalid
	}
}
