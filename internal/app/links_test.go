package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTableRef(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want TableRef
	}{
		{"bare slug", "abc123", TableRef{Slug: "abc123", Token: "env-token"}},
		{"link", "http://localhost:3000/table/abc123?t=edit-tok", TableRef{Slug: "abc123", Token: "edit-tok"}},
		{"localized link", "https://tables.example/en/table/abc123?t=admin-tok", TableRef{Slug: "abc123", Token: "admin-tok", Locale: "en"}},
		{"link without token", "https://tables.example/table/abc123/", TableRef{Slug: "abc123", Token: "env-token"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTableRef(tt.arg, "env-token")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "  ", "https://tables.example/", "https://tables.example/en/tables/abc", "a/b/c/d"} {
		_, err := ParseTableRef(bad, "")
		assert.ErrorIs(t, err, ErrInvalidTableRef, bad)
	}
}

func TestBuildTableLink(t *testing.T) {
	assert.Equal(t, "http://localhost:3000/table/abc123?t=tok", BuildTableLink("http://localhost:3000/", "", "abc123", "tok"))
	assert.Equal(t, "https://tables.example/ru/table/abc123?t=a%2Bb", BuildTableLink("https://tables.example", "ru", "abc123", "a+b"))

	ref, err := ParseTableRef(BuildTableLink("https://tables.example", "en", "s1", "x/y"), "")
	require.NoError(t, err)
	assert.Equal(t, TableRef{Slug: "s1", Token: "x/y", Locale: "en"}, ref)
}
