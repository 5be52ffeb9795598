// Package storage provides the SQLite-backed asset index and audience
// tables, together with repository interfaces that let callers depend on
// behavior rather than on *DB.
package storage

import (
	"context"
)

// AssetRepository defines the interface for published asset lookups.
type AssetRepository interface {
	GetAssetByHash(ctx context.Context, sha string) (*Asset, error)
	SaveAsset(ctx context.Context, asset *Asset) error
	DeleteAsset(ctx context.Context, sha string) error
	CountAssets(ctx context.Context) (int, error)
}

// AudienceRepository defines the interface for broadcast audience data.
type AudienceRepository interface {
	SaveMember(ctx context.Context, member *Member) error
	SaveMembersBatch(ctx context.Context, members []*Member) error
	CountAudience(ctx context.Context, include, exclude []string) (int64, error)
	SearchTags(ctx context.Context, prefix string, limit int) ([]TagCount, error)
}

var (
	_ AssetRepository    = (*DB)(nil)
	_ AudienceRepository = (*DB)(nil)
)
