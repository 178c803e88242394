package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide writes step-by-step instructions for copying the request
// identity out of a logged-in browser session
func ShowTokenGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "AUTHORIZATION TOKEN GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "clipvault sends the same identity your browser sends to the item API.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Open the site in your browser and log in")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Open Developer Tools")
	fmt.Fprintln(w, "   Chrome/Edge/Brave/Firefox: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Network tab, then reload the page")
	fmt.Fprintln(w, "   Click any request that goes to the API base URL you configured")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 4: Under 'Request Headers' copy:")
	fmt.Fprintln(w, "   authorization   the value after 'Bearer ' (the prefix is optional)")
	fmt.Fprintln(w, "   oai-device-id   optional; a random id is generated if omitted")
	fmt.Fprintln(w, "   cookie          optional; only needed for --browser sessions")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "NOTES:")
	fmt.Fprintln(w, "   Tokens expire; run 'clipvault auth login' again when requests return 401")
	fmt.Fprintln(w, "   The token grants access to your account. Do not share it.")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// ShowQuickGuide writes the one-line version of ShowTokenGuide
func ShowQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "F12 -> Network -> reload -> any API request -> Request Headers -> authorization")
	fmt.Fprintln(w, "Type 'help' for detailed instructions")
}

// NormalizeToken trims input pasted from a header dump: surrounding quotes,
// an "authorization:" prefix and whitespace are removed. The Bearer prefix
// is kept if present.
func NormalizeToken(input string) string {
	token := strings.TrimSpace(input)
	if name, value, ok := strings.Cut(token, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "authorization") {
		token = strings.TrimSpace(value)
	}
	return strings.Trim(token, `"'`)
}
