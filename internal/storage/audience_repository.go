package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SaveMember inserts or updates a member and replaces its tags.
func (db *DB) SaveMember(ctx context.Context, member *Member) error {
	return db.SaveMembersBatch(ctx, []*Member{member})
}

// SaveMembersBatch inserts or updates members in a single transaction.
func (db *DB) SaveMembersBatch(ctx context.Context, members []*Member) error {
	if len(members) == 0 {
		return nil
	}

	tx, err := db.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO members (id, name, blocked, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			blocked = excluded.blocked,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare member upsert: %w", err)
	}
	defer func() { _ = upsert.Close() }()

	clearTags, err := tx.PrepareContext(ctx, `DELETE FROM member_tags WHERE member_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare tag cleanup: %w", err)
	}
	defer func() { _ = clearTags.Close() }()

	addTag, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO member_tags (member_id, tag) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare tag insert: %w", err)
	}
	defer func() { _ = addTag.Close() }()

	now := time.Now().Unix()
	for _, m := range members {
		if _, err := upsert.ExecContext(ctx, m.ID, m.Name, m.Blocked, now); err != nil {
			slog.ErrorContext(ctx, "failed to save member in batch",
				"member_id", m.ID,
				"error", err)
			return fmt.Errorf("failed to save member %s: %w", m.ID, err)
		}
		if _, err := clearTags.ExecContext(ctx, m.ID); err != nil {
			return fmt.Errorf("failed to clear tags of %s: %w", m.ID, err)
		}
		for _, tag := range normalizeTags(m.Tags) {
			if _, err := addTag.ExecContext(ctx, m.ID, tag); err != nil {
				return fmt.Errorf("failed to tag %s: %w", m.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit members: %w", err)
	}
	return nil
}

// CountAudience counts reachable members that carry any include tag and no
// exclude tag. An empty include list selects every reachable member.
func (db *DB) CountAudience(ctx context.Context, include, exclude []string) (int64, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "m.blocked = 0")

	if len(include) > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM member_tags t WHERE t.member_id = m.id AND t.tag IN ("+placeholders(len(include))+"))")
		for _, tag := range include {
			args = append(args, normalizeTag(tag))
		}
	}
	if len(exclude) > 0 {
		where = append(where, "NOT EXISTS (SELECT 1 FROM member_tags t WHERE t.member_id = m.id AND t.tag IN ("+placeholders(len(exclude))+"))")
		for _, tag := range exclude {
			args = append(args, normalizeTag(tag))
		}
	}

	query := "SELECT COUNT(*) FROM members m WHERE " + strings.Join(where, " AND ")

	start := time.Now()
	var count int64
	if err := db.reader.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audience: %w", err)
	}

	if duration := time.Since(start); duration > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "CountAudience",
			"duration_ms", duration.Milliseconds(),
			"include", len(include),
			"exclude", len(exclude))
	}
	return count, nil
}

// SearchTags lists tags starting with prefix, most used first.
func (db *DB) SearchTags(ctx context.Context, prefix string, limit int) ([]TagCount, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT t.tag, COUNT(*) AS n
		FROM member_tags t
		JOIN members m ON m.id = t.member_id
		WHERE m.blocked = 0 AND t.tag LIKE ? ESCAPE '\'
		GROUP BY t.tag
		ORDER BY n DESC, t.tag ASC
		LIMIT ?
	`
	rows, err := db.reader.QueryContext(ctx, query, tagPrefixPattern(prefix), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTagCounts(rows)
}

func scanTagCounts(rows *sql.Rows) ([]TagCount, error) {
	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Members); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
