package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"https://example.com/a", false},
		{"http://example.com", false},
		{"about:blank", false},
		{"ftp://example.com", true},
		{"https://", true},
		{"javascript:alert(1)", true},
		{"://bad", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := Parse(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedURL)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSite(t *testing.T) {
	tests := []struct {
		raw  string
		site string
	}{
		{"https://www.example.com/a", "https://example.com"},
		{"https://static.example.com/b", "https://example.com"},
		{"http://example.com/", "http://example.com"},
		{"https://foo.bar.co.uk/", "https://bar.co.uk"},
		{"about:blank", "about:"},
		{"http://127.0.0.1:8080/", "http://127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.site, Site(u))
		})
	}
}

func TestAboutPages(t *testing.T) {
	crash, err := Parse(CrashURL("https://example.com/x?y=1"))
	require.NoError(t, err)
	page := ParseAbout(crash)
	assert.True(t, page.IsCrash())
	assert.Equal(t, "https://example.com/x?y=1", page.Target)

	neterr, err := Parse(ErrorURL("connection refused", "https://example.com/"))
	require.NoError(t, err)
	page = ParseAbout(neterr)
	assert.True(t, page.IsError())
	assert.Equal(t, "connection refused", page.Reason)
	assert.Equal(t, "https://example.com/", page.Target)

	blank, err := Parse(BlankURL)
	require.NoError(t, err)
	assert.Equal(t, "blank", ParseAbout(blank).Name)
}

func TestResolve(t *testing.T) {
	got, err := Resolve("https://example.com/dir/page.html", "frame.html")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/dir/frame.html", got)
}
