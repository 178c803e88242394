// Package browser provides an ItemSource that loads item and listing URLs in
// a Chrome tab driven by go-rod. It is used when the item endpoint only
// answers inside a browser session; the response body is read back from the
// rendered page and decoded as JSON.
package browser
