package collector

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidRef is returned when no post id can be found in a reference
var ErrInvalidRef = errors.New("collector: no post id in reference")

var postIDPattern = regexp.MustCompile(`(?i)/(s_[0-9a-f]+)`)

// ExtractID returns the post id (s_<hex>) of a bare id or a post URL such as
// .../p/<id> or .../post/<id>.
func ExtractID(urlOrID string) (string, error) {
	ref := strings.TrimSpace(urlOrID)
	if strings.HasPrefix(ref, "s_") && !strings.Contains(ref, "/") {
		return ref, nil
	}
	if m := postIDPattern.FindStringSubmatch(ref); m != nil {
		return m[1], nil
	}
	return "", ErrInvalidRef
}

// Endpoint builds item and listing URLs under a base URL
type Endpoint struct {
	BaseURL  string
	FeedPath string
}

// NormalizeRef maps a post id to its item URL, or to its listing URL when
// cursor is set. Without a cursor full URLs and other references pass
// through unchanged. With a cursor a post URL resolves through its id; a
// URL carrying no id gets the cursor as a query parameter.
func (e Endpoint) NormalizeRef(ref, cursor string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if cursor == "" {
			return ref
		}
		if id, err := ExtractID(ref); err == nil && e.BaseURL != "" {
			return e.NormalizeRef(id, cursor)
		}
		u, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		q := u.Query()
		q.Set("cursor", cursor)
		u.RawQuery = q.Encode()
		return u.String()
	}
	if !strings.HasPrefix(ref, "s_") {
		return ref
	}

	base := strings.TrimRight(e.BaseURL, "/") + "/" + ref
	if cursor == "" {
		return base
	}
	feed := strings.Trim(e.FeedPath, "/")
	if feed == "" {
		feed = "remix_feed"
	}
	return base + "/" + feed + "?cursor=" + url.QueryEscape(cursor)
}
