package collector

import (
	"context"
	"fmt"

	errs "clipvault/pkg/errors"
	"clipvault/pkg/logger"
)

// DefaultMaxPages caps listing requests after the root
const DefaultMaxPages = 20

// ItemSource fetches items and listing pages
type ItemSource interface {
	FetchRoot(ctx context.Context, ref string) (*Item, error)
	FetchPage(ctx context.Context, ref, cursor string) (*PageListing, error)
}

// Collector gathers a root item and its related items
type Collector struct {
	source   ItemSource
	maxPages int
	logger   logger.Logger
}

// New creates a Collector; maxPages <= 0 means DefaultMaxPages
func New(source ItemSource, maxPages int, log logger.Logger) *Collector {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Collector{
		source:   source,
		maxPages: maxPages,
		logger:   log.WithField("component", "collector"),
	}
}

// Collect fetches the root item for ref and follows its related listing.
// Pagination stops at the first page without a cursor, at a page without
// items or after maxPages pages, whichever comes first.
func (c *Collector) Collect(ctx context.Context, ref string) (*Collection, error) {
	root, err := c.source.FetchRoot(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch root item %s: %w", ref, err)
	}
	if root == nil {
		return nil, errs.New(errs.ErrorTypeParsing, 0, "empty root item for %s", ref)
	}

	collection := &Collection{Root: root}
	var cursor string

	if !root.HasChildren && root.Post.RemixPosts != nil {
		cursor = root.Post.RemixPosts.Cursor
		collection.Related = append(collection.Related, root.Post.RemixPosts.Items...)
	}

	c.logger.InfoWithFields("Root item fetched", map[string]interface{}{
		"id":          root.Post.ID,
		"remix_count": root.Post.RemixCount,
		"seeded":      len(collection.Related),
	})

	for cursor != "" && collection.Pages < c.maxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := c.source.FetchPage(ctx, ref, cursor)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d of %s: %w", collection.Pages+1, ref, err)
		}
		collection.Pages++

		if page == nil || page.Items == nil {
			c.logger.WarnWithFields("Listing page has no items, stopping pagination", map[string]interface{}{
				"page": collection.Pages,
			})
			break
		}
		collection.Related = append(collection.Related, page.Items...)

		c.logger.DebugWithFields("Listing page fetched", map[string]interface{}{
			"page":  collection.Pages,
			"items": len(page.Items),
			"total": len(collection.Related),
		})

		cursor = page.Cursor
	}

	if cursor != "" && collection.Pages >= c.maxPages {
		c.logger.WarnWithFields("Page limit reached, listing truncated", map[string]interface{}{
			"max_pages": c.maxPages,
		})
	}

	return collection, nil
}
