// Package recovery handles password-recovery links and the reset flow.
package recovery

import (
	"net/url"
	"strings"
)

const tokenMarker = "#access_token="

// NormalizeHash turns a second token fragment appended after the client
// route into a query on that route:
//
//	#/reset#access_token=X&type=recovery -> #/reset?access_token=X&type=recovery
//
// It reports whether the hash was rewritten.
func NormalizeHash(hash string) (string, bool) {
	idx := strings.Index(hash, tokenMarker)
	if idx == -1 {
		return hash, false
	}
	return hash[:idx] + "?" + hash[idx+1:], true
}

// NormalizeLocation applies NormalizeHash to the fragment of a full URL.
func NormalizeLocation(location string) string {
	idx := strings.Index(location, "#")
	if idx == -1 {
		return location
	}
	hash, _ := NormalizeHash(location[idx:])
	return location[:idx] + hash
}

// Params are the credentials a recovery link may carry.
type Params struct {
	AccessToken  string
	RefreshToken string
	Type         string
	Code         string
}

// HasTokens reports whether both tokens are present.
func (p Params) HasTokens() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// ParseParams reads recovery params from a route fragment in either the
// rewritten query form or the raw fragment form.
func ParseParams(hash string) Params {
	var raw string
	if i := strings.Index(hash, "?"); i != -1 {
		raw = hash[i+1:]
	} else if i := strings.Index(hash, "access_token="); i != -1 {
		raw = hash[i:]
	}
	values, _ := url.ParseQuery(raw)
	return Params{
		AccessToken:  values.Get("access_token"),
		RefreshToken: values.Get("refresh_token"),
		Type:         values.Get("type"),
		Code:         values.Get("code"),
	}
}

// ParseLocation reads recovery params from a full browser location. A code
// in the page query (outside the fragment) is accepted too.
func ParseLocation(location string) Params {
	var hash string
	base := location
	if i := strings.Index(location, "#"); i != -1 {
		base, hash = location[:i], location[i:]
	}
	p := ParseParams(hash)
	if p.Code == "" {
		if u, err := url.Parse(base); err == nil {
			p.Code = u.Query().Get("code")
		}
	}
	return p
}
