package domain

import (
	"context"
)

// DirectoryClient provides network access to the business/event directory.
// Implemented by the directory HTTP client.
type DirectoryClient interface {
	// FetchBusinesses returns businesses matching filters
	FetchBusinesses(ctx context.Context, f Filters) ([]Record, error)

	// FetchEvents returns events matching filters
	FetchEvents(ctx context.Context, f Filters) ([]Record, error)

	// Search runs the server-side ranked search
	Search(ctx context.Context, query string, f Filters) (*SearchResponse, error)

	// FetchTile downloads one map tile
	FetchTile(ctx context.Context, z, x, y uint32) ([]byte, error)
}
