// Package collector gathers a root post and the related items listed under
// it, following an opaque cursor for at most a fixed number of pages.
//
// Items come from an ItemSource. pkg/api provides the HTTP implementation
// and pkg/browser one that reads the endpoint through a headless browser.
package collector
