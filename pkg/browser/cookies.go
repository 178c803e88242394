package browser

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// ParseCookies splits a Cookie header value ("a=1; b=2") into browser
// cookies scoped to domain. Entries without "name=" are dropped; a repeated
// name keeps its first position and takes the last value.
func ParseCookies(raw, domain string) []*proto.NetworkCookieParam {
	var cookies []*proto.NetworkCookieParam
	seen := make(map[string]*proto.NetworkCookieParam)

	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		value = strings.TrimSpace(value)

		if c, dup := seen[name]; dup {
			c.Value = value
			continue
		}
		c := &proto.NetworkCookieParam{
			Name:     name,
			Value:    value,
			Domain:   domain,
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
		}
		seen[name] = c
		cookies = append(cookies, c)
	}
	return cookies
}

// cookieDomain returns the last two labels of the base URL host with a
// leading dot, so cookies also reach sibling subdomains
func cookieDomain(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := u.Hostname()
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return "." + strings.Join(labels[len(labels)-2:], ".")
}
