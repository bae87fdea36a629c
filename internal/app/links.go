package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidTableRef = errors.New("invalid table reference")

// TableRef identifies a table and the token used to open it.
type TableRef struct {
	Slug   string
	Token  string
	Locale string
}

// ParseTableRef accepts a share link such as
// https://tables.example/en/table/abc123?t=TOKEN or a bare slug. A token in
// the link wins over fallbackToken.
func ParseTableRef(arg, fallbackToken string) (TableRef, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return TableRef{}, fmt.Errorf("%w: empty", ErrInvalidTableRef)
	}

	if !strings.Contains(arg, "/") {
		return TableRef{Slug: arg, Token: fallbackToken}, nil
	}

	u, err := url.Parse(arg)
	if err != nil {
		return TableRef{}, fmt.Errorf("%w: %v", ErrInvalidTableRef, err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	ref := TableRef{Token: u.Query().Get("t")}
	switch {
	case len(segments) == 2 && segments[0] == "table":
		ref.Slug = segments[1]
	case len(segments) == 3 && segments[1] == "table":
		ref.Locale = segments[0]
		ref.Slug = segments[2]
	default:
		return TableRef{}, fmt.Errorf("%w: %q is not a table link", ErrInvalidTableRef, arg)
	}
	if ref.Slug == "" {
		return TableRef{}, fmt.Errorf("%w: missing slug", ErrInvalidTableRef)
	}
	if ref.Token == "" {
		ref.Token = fallbackToken
	}
	return ref, nil
}

// BuildTableLink renders the share link the web front-end understands.
func BuildTableLink(webURL, locale, slug, token string) string {
	base := strings.TrimSuffix(webURL, "/")
	path := "/table/" + url.PathEscape(slug)
	if locale != "" {
		path = "/" + url.PathEscape(locale) + path
	}
	return base + path + "?" + url.Values{"t": {token}}.Encode()
}
