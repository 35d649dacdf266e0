// Package link builds and parses share links of the form
// "<base>/join?channel=<id>".
package link

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"joinlink/internal/channel"
)

const (
	// JoinPath is the fixed path every share link points at.
	JoinPath = "/join"
	// Param is the query key that carries the channel id.
	Param = "channel"
)

var ErrConfiguration = errors.New("link configuration error")

// Codec encodes channel ids under a base domain that was validated once at
// construction.
type Codec struct {
	base string
}

// NewCodec validates baseDomain. It must be an absolute URL prefix (scheme
// and host) without query or fragment; one trailing slash is tolerated.
func NewCodec(baseDomain string) (*Codec, error) {
	base := strings.TrimSuffix(strings.TrimSpace(baseDomain), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: empty base domain", ErrConfiguration)
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base domain %q is not absolute", ErrConfiguration, baseDomain)
	}
	if u.ForceQuery || strings.ContainsAny(base, "?#") {
		return nil, fmt.Errorf("%w: base domain %q has a query or fragment", ErrConfiguration, baseDomain)
	}
	return &Codec{base: base}, nil
}

// Encode returns the share link for id. The alphabet is URL-safe, so the id
// is inserted as is.
func (c *Codec) Encode(id channel.ID) (string, error) {
	if !id.Valid() {
		return "", fmt.Errorf("%w: %q", channel.ErrInvalid, string(id))
	}
	return c.base + JoinPath + "?" + Param + "=" + string(id), nil
}

// Encode is a one-shot NewCodec followed by Codec.Encode.
func Encode(baseDomain string, id channel.ID) (string, error) {
	c, err := NewCodec(baseDomain)
	if err != nil {
		return "", err
	}
	return c.Encode(id)
}

// Decode extracts the channel id from rawURL. It never fails: a missing
// query, a missing or empty channel key, or an undecodable value all yield
// ok == false. The value is returned as decoded and is not checked against
// the channel alphabet.
func Decode(rawURL string) (id channel.ID, ok bool) {
	_, query, found := strings.Cut(rawURL, "?")
	if !found {
		return "", false
	}
	query, _, _ = strings.Cut(query, "#")
	v, ok := ParseQuery(query)[Param]
	if !ok || v == "" {
		return "", false
	}
	return channel.ID(v), true
}

// ParseQuery splits query on "&" into key/value pairs. A pair is kept only
// when it holds exactly one "=". Values have "+" replaced by a space and are
// then percent-decoded; a value with a bad escape drops the pair. When a key
// repeats, the last occurrence wins.
func ParseQuery(query string) map[string]string {
	out := make(map[string]string)
	if query == "" {
		return out
	}
	for _, pair := range strings.Split(query, "&") {
		if strings.Count(pair, "=") != 1 {
			continue
		}
		key, raw, _ := strings.Cut(pair, "=")
		val, err := url.PathUnescape(strings.ReplaceAll(raw, "+", " "))
		if err != nil {
			continue
		}
		out[key] = val
	}
	return out
}
