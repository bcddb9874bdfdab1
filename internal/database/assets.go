package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"media-library/internal/mediatypes"
)

// UpsertAsset inserts the asset or refreshes an existing row for the same
// path. When size or modification time differ from the stored row the
// cache metadata is reset and changed is true, so callers know the derived
// artifacts are stale. New rows are always reported as changed.
func (d *Database) UpsertAsset(ctx context.Context, a *Asset) (id int64, changed bool, err error) {
	start := time.Now()
	defer func() { recordQuery("upsert_asset", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	w := d.writer()

	var prevSize, prevMod int64
	err = w.QueryRowContext(ctx,
		"SELECT id, size, mod_time FROM assets WHERE path = ?", a.Path,
	).Scan(&id, &prevSize, &prevMod)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		var res sql.Result
		res, err = w.ExecContext(ctx, `
			INSERT INTO assets (path, kind, size, mod_time)
			VALUES (?, ?, ?, ?)
		`, a.Path, a.Kind, a.Size, a.ModTime.Unix())
		if err != nil {
			return 0, false, err
		}
		id, err = res.LastInsertId()
		return id, true, err

	case err != nil:
		return 0, false, err
	}

	changed = prevSize != a.Size || prevMod != a.ModTime.Unix()
	if changed {
		_, err = w.ExecContext(ctx, `
			UPDATE assets SET
				kind = ?, size = ?, mod_time = ?,
				thumbnail_ready = 0, thumbnail_time = 0, lcd_visit_time = 0,
				updated_at = strftime('%s', 'now')
			WHERE id = ?
		`, a.Kind, a.Size, a.ModTime.Unix(), id)
	} else {
		_, err = w.ExecContext(ctx,
			"UPDATE assets SET updated_at = strftime('%s', 'now') WHERE id = ?", id)
	}
	return id, changed, err
}

// DeleteAsset removes the asset row for path. Deleting a missing row is not an error.
func (d *Database) DeleteAsset(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_asset", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.writer().ExecContext(ctx, "DELETE FROM assets WHERE path = ?", path)
	return err
}

// PruneAssets deletes assets not refreshed by UpsertAsset since before and
// returns their paths.
func (d *Database) PruneAssets(ctx context.Context, before time.Time) (paths []string, err error) {
	start := time.Now()
	defer func() { recordQuery("prune_assets", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	w := d.writer()
	rows, err := w.QueryContext(ctx, "SELECT path FROM assets WHERE updated_at < ?", before.Unix())
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		paths = append(paths, p)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}

	_, err = w.ExecContext(ctx, "DELETE FROM assets WHERE updated_at < ?", before.Unix())
	return paths, err
}

// GetAssetByPath retrieves a single asset by path.
func (d *Database) GetAssetByPath(ctx context.Context, path string) (*Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a Asset
	var kind string
	var modTime, thumbTime, lcdTime int64
	var ready int
	err := d.db.QueryRowContext(ctx, `
		SELECT id, path, kind, size, mod_time, thumbnail_ready, thumbnail_time, lcd_visit_time
		FROM assets WHERE path = ?
	`, path).Scan(&a.ID, &a.Path, &kind, &a.Size, &modTime, &ready, &thumbTime, &lcdTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, path)
	}
	if err != nil {
		return nil, err
	}

	a.Kind = mediatypes.AssetKind(kind)
	a.ModTime = time.Unix(modTime, 0)
	a.ThumbnailReady = ready != 0
	a.ThumbnailTime = unixOrZero(thumbTime)
	a.LCDVisitTime = unixOrZero(lcdTime)
	return &a, nil
}

// QueryArtifactInfo returns the source path and kind for an asset id.
func (d *Database) QueryArtifactInfo(ctx context.Context, id int64) (info ArtifactInfo, err error) {
	start := time.Now()
	defer func() { recordQuery("query_artifact_info", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, path, kind, thumbnail_ready, lcd_visit_time
		FROM assets WHERE id = ?
	`, id)
	info, err = scanArtifactInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: id %d", ErrAssetNotFound, id)
	}
	return info, err
}

// UpdateCacheMetadata records thumbnail readiness and LCD visit time for an
// asset. It runs inside the open write transaction when there is one.
func (d *Database) UpdateCacheMetadata(ctx context.Context, id int64, f CacheFields) (err error) {
	start := time.Now()
	defer func() { recordQuery("update_cache_metadata", start, err) }()

	if f.Empty() {
		return nil
	}

	at := f.At
	if at.IsZero() {
		at = time.Now()
	}

	var sets []string
	var args []any
	switch {
	case f.SetThumbnail:
		sets = append(sets, "thumbnail_ready = 1", "thumbnail_time = ?")
		args = append(args, at.Unix())
	case f.ClearThumbnail:
		sets = append(sets, "thumbnail_ready = 0", "thumbnail_time = 0")
	}
	switch {
	case f.SetLCDVisit:
		sets = append(sets, "lcd_visit_time = ?")
		args = append(args, at.Unix())
	case f.ClearLCDVisit:
		sets = append(sets, "lcd_visit_time = 0")
	}
	args = append(args, id)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := "UPDATE assets SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := d.writer().ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, rerr := res.RowsAffected(); rerr == nil && n == 0 {
		err = fmt.Errorf("%w: id %d", ErrAssetNotFound, id)
	}
	return err
}

// ListMissingThumbnails returns up to limit supported assets whose
// thumbnail tiers are not ready, oldest first.
func (d *Database) ListMissingThumbnails(ctx context.Context, limit int) ([]ArtifactInfo, error) {
	return d.listArtifacts(ctx, "list_missing_thumbnails", `
		SELECT id, path, kind, thumbnail_ready, lcd_visit_time
		FROM assets
		WHERE thumbnail_ready = 0 AND kind IN ('image', 'video', 'audio')
		ORDER BY id
		LIMIT ?
	`, limit)
}

// ListLCDBeyond returns assets with an LCD artifact other than the keep
// most recently visited ones, most recent first.
func (d *Database) ListLCDBeyond(ctx context.Context, keep int) ([]ArtifactInfo, error) {
	return d.listArtifacts(ctx, "list_lcd_beyond", `
		SELECT id, path, kind, thumbnail_ready, lcd_visit_time
		FROM assets
		WHERE lcd_visit_time > 0
		ORDER BY lcd_visit_time DESC, id DESC
		LIMIT -1 OFFSET ?
	`, keep)
}

func (d *Database) listArtifacts(ctx context.Context, op, query string, arg int) (out []ArtifactInfo, err error) {
	start := time.Now()
	defer func() { recordQuery(op, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		info, serr := scanArtifactInfo(rows)
		if serr != nil {
			err = serr
			return nil, err
		}
		out = append(out, info)
	}
	err = rows.Err()
	return out, err
}

// GetStats counts assets by kind and those missing thumbnails.
func (d *Database) GetStats(ctx context.Context) (IndexStats, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s IndexStats
	err := d.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN kind = 'image' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'video' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = 'audio' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN thumbnail_ready = 0 AND kind != 'other' THEN 1 ELSE 0 END), 0)
		FROM assets
	`).Scan(&s.TotalImages, &s.TotalVideos, &s.TotalAudio, &s.MissingThumbnail)
	return s, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifactInfo(r rowScanner) (ArtifactInfo, error) {
	var info ArtifactInfo
	var kind string
	var ready int
	var lcd int64
	if err := r.Scan(&info.ID, &info.Path, &kind, &ready, &lcd); err != nil {
		return ArtifactInfo{}, err
	}
	info.Kind = mediatypes.AssetKind(kind)
	info.ThumbnailReady = ready != 0
	info.LCDVisitTime = unixOrZero(lcd)
	return info, nil
}

func unixOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
