// Package document holds the URL rules the constellation applies to documents:
// parsing, the site key that decides event-loop sharing, and the about: URLs of
// the substitute documents shown for load errors and crashes.
package document

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrUnsupportedURL is returned for URLs no pipeline can load
var ErrUnsupportedURL = errors.New("document: unsupported url")

const (
	BlankURL = "about:blank"

	neterrorPath = "neterror"
	crashPath    = "crash"
)

// Parse validates a navigation target. Only http, https and about URLs are loadable.
func Parse(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return nil, fmt.Errorf("%w: missing host in %q", ErrUnsupportedURL, raw)
		}
	case "about":
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, u.Scheme)
	}
	return u, nil
}

// Resolve resolves ref against base, as an <iframe src> would be
func Resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// Site returns the key under which documents may share a script event loop:
// scheme plus registrable domain. about: documents share the "about:" site.
func Site(u *url.URL) string {
	if u.Scheme == "about" {
		return "about:"
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return u.Scheme + "://" + host
	}
	if registrable, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		host = registrable
	}
	return u.Scheme + "://" + host
}

// ErrorURL is the substitute document for a failed navigation to target
func ErrorURL(reason, target string) string {
	q := url.Values{}
	q.Set("reason", reason)
	q.Set("url", target)
	return "about:" + neterrorPath + "?" + q.Encode()
}

// CrashURL is the recovery document shown in place of a crashed document
func CrashURL(target string) string {
	q := url.Values{}
	q.Set("url", target)
	return "about:" + crashPath + "?" + q.Encode()
}

// AboutPage describes an about: URL
type AboutPage struct {
	Name   string
	Target string
	Reason string
}

// ParseAbout splits an about: URL into its page name and parameters
func ParseAbout(u *url.URL) AboutPage {
	name, rawQuery, _ := strings.Cut(u.Opaque, "?")
	if rawQuery == "" {
		rawQuery = u.RawQuery
	}
	q, _ := url.ParseQuery(rawQuery)
	return AboutPage{Name: name, Target: q.Get("url"), Reason: q.Get("reason")}
}

// IsError reports whether u is a neterror substitute document
func (p AboutPage) IsError() bool { return p.Name == neterrorPath }

// IsCrash reports whether u is a crash recovery document
func (p AboutPage) IsCrash() bool { return p.Name == crashPath }
