// Package api is the HTTP client for the item endpoint. It implements
// collector.ItemSource with typed errors, client-side throttling and retries
// on transient failures, and exposes the shared request header set.
package api
