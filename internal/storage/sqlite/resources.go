package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
	"github.com/dennis1984/BYWebApp/pkg/utils"
)

const resourceColumns = `id, title, subtitle, description, content, tags, temperature,
	read_count, like_count, collection_count, comment_count,
	media_type, theme_type, progress, box_office_forecast, public_praise_forecast, air_time,
	status, created, updated`

func resourceTables() []string {
	tables := make([]string, 0, len(models.AllKinds()))
	for _, k := range models.AllKinds() {
		t, _ := tableFor(k)
		tables = append(tables, t)
	}
	return tables
}

func tableFor(kind models.ResourceKind) (string, error) {
	switch kind {
	case models.KindMedia:
		return "media", nil
	case models.KindCase:
		return "cases", nil
	case models.KindInformation:
		return "information", nil
	}
	return "", apperr.InvalidInput("resource_kind", "unknown resource kind %d", int(kind))
}

func counterColumnFor(col models.CounterColumn) (string, error) {
	switch col {
	case models.CounterRead:
		return "read_count", nil
	case models.CounterLike:
		return "like_count", nil
	case models.CounterCollection:
		return "collection_count", nil
	case models.CounterComment:
		return "comment_count", nil
	}
	return "", apperr.InvalidInput("column", "unknown counter %q", string(col))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(kind models.ResourceKind, row rowScanner) (*models.Resource, error) {
	var (
		r                        models.Resource
		tags                     string
		airTime                  sql.NullInt64
		createdUnix, updatedUnix int64
	)
	err := row.Scan(
		&r.ID, &r.Title, &r.Subtitle, &r.Description, &r.Content, &tags, &r.Temperature,
		&r.ReadCount, &r.LikeCount, &r.CollectionCount, &r.CommentCount,
		&r.MediaType, &r.ThemeType, &r.Progress, &r.BoxOfficeForecast, &r.PublicPraiseForecast, &airTime,
		&r.Status, &createdUnix, &updatedUnix,
	)
	if err != nil {
		return nil, err
	}

	r.Kind = kind
	r.Tags, err = utils.DecodeTagList(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tags of %s %d: %w", kind, r.ID, err)
	}
	if airTime.Valid {
		t := time.Unix(airTime.Int64, 0)
		r.AirTime = &t
	}
	r.Created = time.Unix(createdUnix, 0)
	r.Updated = time.Unix(updatedUnix, 0)
	return &r, nil
}

// GetResource returns the active row of kind with id.
func (c *Client) GetResource(ctx context.Context, kind models.ResourceKind, id int64) (*models.Resource, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ? AND status = ?`, resourceColumns, table)
	r, err := scanResource(kind, c.db.QueryRowContext(ctx, query, id, models.StatusActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(kind.String(), id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}
	return r, nil
}

// ListResources returns every active row of kind, most recently updated first.
func (c *Client) ListResources(ctx context.Context, kind models.ResourceKind) ([]*models.Resource, error) {
	return c.queryResources(ctx, kind, "", nil)
}

// FilterResources returns the active rows of kind passing f, in the same
// order as ListResources.
func (c *Client) FilterResources(ctx context.Context, kind models.ResourceKind, f models.ResourceFilter) ([]*models.Resource, error) {
	var (
		conds []string
		args  []any
	)
	eq := func(col string, v *int) {
		if v != nil {
			conds = append(conds, col+" = ?")
			args = append(args, *v)
		}
	}
	eq("media_type", f.MediaType)
	eq("theme_type", f.ThemeType)
	eq("progress", f.Progress)
	if f.MinTemperature != nil {
		conds = append(conds, "temperature >= ?")
		args = append(args, *f.MinTemperature)
	}
	if f.MaxTemperature != nil {
		conds = append(conds, "temperature <= ?")
		args = append(args, *f.MaxTemperature)
	}

	var where string
	if len(conds) > 0 {
		where = " AND " + strings.Join(conds, " AND ")
	}
	return c.queryResources(ctx, kind, where, args)
}

func (c *Client) queryResources(ctx context.Context, kind models.ResourceKind, where string, args []any) ([]*models.Resource, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE status = ?%s ORDER BY updated DESC, id DESC`, resourceColumns, table, where)
	rows, err := c.db.QueryContext(ctx, query, append([]any{models.StatusActive}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	defer rows.Close()

	var resources []*models.Resource
	for rows.Next() {
		r, err := scanResource(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		resources = append(resources, r)
	}
	return resources, rows.Err()
}

func airTimeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

// InsertResource stores r as a new active row and sets r.ID.
func (c *Client) InsertResource(ctx context.Context, r *models.Resource) error {
	table, err := tableFor(r.Kind)
	if err != nil {
		return err
	}
	tags := utils.EncodeTagList(r.Tags)

	now := c.now()
	if r.Created.IsZero() {
		r.Created = now
	}
	if r.Updated.IsZero() {
		r.Updated = now
	}
	r.Status = models.StatusActive

	query := fmt.Sprintf(`
		INSERT INTO %s (title, subtitle, description, content, tags, temperature,
			read_count, like_count, collection_count, comment_count,
			media_type, theme_type, progress, box_office_forecast, public_praise_forecast, air_time,
			status, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, table)
	res, err := c.db.ExecContext(ctx, query,
		r.Title, r.Subtitle, r.Description, r.Content, tags, r.Temperature,
		r.ReadCount, r.LikeCount, r.CollectionCount, r.CommentCount,
		r.MediaType, r.ThemeType, r.Progress, r.BoxOfficeForecast, r.PublicPraiseForecast, airTimeValue(r.AirTime),
		r.Status, r.Created.Unix(), r.Updated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s: %w", r.Kind, err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

// UpdateResource rewrites the descriptive fields of an active row and bumps
// its updated stamp. Counters are left alone.
func (c *Client) UpdateResource(ctx context.Context, r *models.Resource) error {
	table, err := tableFor(r.Kind)
	if err != nil {
		return err
	}
	tags := utils.EncodeTagList(r.Tags)

	r.Updated = c.now()
	query := fmt.Sprintf(`
		UPDATE %s SET title = ?, subtitle = ?, description = ?, content = ?, tags = ?, temperature = ?,
			media_type = ?, theme_type = ?, progress = ?, box_office_forecast = ?, public_praise_forecast = ?,
			air_time = ?, updated = ?
		WHERE id = ? AND status = ?
	`, table)
	res, err := c.db.ExecContext(ctx, query,
		r.Title, r.Subtitle, r.Description, r.Content, tags, r.Temperature,
		r.MediaType, r.ThemeType, r.Progress, r.BoxOfficeForecast, r.PublicPraiseForecast,
		airTimeValue(r.AirTime), r.Updated.Unix(),
		r.ID, models.StatusActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", r.Kind, err)
	}
	return requireAffected(res, r.Kind.String(), r.ID)
}

// DeleteResource soft-deletes the row by moving its status off active.
func (c *Client) DeleteResource(ctx context.Context, kind models.ResourceKind, id int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET status = ?, updated = ? WHERE id = ? AND status = ?`, table)
	res, err := c.db.ExecContext(ctx, query, models.StatusDeleted, c.now().Unix(), id, models.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	return requireAffected(res, kind.String(), id)
}

// AddCounter applies delta to one counter column inside a transaction and
// returns the new value. The value never drops below zero.
func (c *Client) AddCounter(ctx context.Context, kind models.ResourceKind, id int64, col models.CounterColumn, delta int64) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	column, err := counterColumnFor(col)
	if err != nil {
		return 0, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	value, err := addCounterTx(ctx, tx, kind, table, id, column, delta)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return value, nil
}

func addCounterTx(ctx context.Context, tx *sql.Tx, kind models.ResourceKind, table string, id int64, column string, delta int64) (int64, error) {
	update := fmt.Sprintf(`UPDATE %[1]s SET %[2]s = MAX(%[2]s + ?, 0) WHERE id = ? AND status = ?`, table, column)
	res, err := tx.ExecContext(ctx, update, delta, id, models.StatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s of %s: %w", column, kind, err)
	}
	if err := requireAffected(res, kind.String(), id); err != nil {
		return 0, err
	}

	var value int64
	selectQuery := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, column, table)
	if err := tx.QueryRowContext(ctx, selectQuery, id).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to read %s of %s: %w", column, kind, err)
	}
	return value, nil
}

// SetOpinion records (on) or withdraws a user's like or collection of a
// resource and moves the matching counter in the same transaction. When
// the opinion is already in the requested state nothing is written and
// changed is false.
func (c *Client) SetOpinion(ctx context.Context, userID int64, kind models.ResourceKind, id int64, col models.CounterColumn, on bool) (value int64, changed bool, err error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, false, err
	}
	if col != models.CounterLike && col != models.CounterCollection {
		return 0, false, apperr.InvalidInput("column", "%q is not an opinion", string(col))
	}
	column, err := counterColumnFor(col)
	if err != nil {
		return 0, false, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ? AND status = ?`, column, table)
	err = tx.QueryRowContext(ctx, current, id, models.StatusActive).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, apperr.NotFound(kind.String(), id)
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s of %s: %w", column, kind, err)
	}

	var (
		res   sql.Result
		delta int64
	)
	if on {
		delta = 1
		res, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO resource_opinions (user_id, source_type, source_id, counter, created)
			VALUES (?, ?, ?, ?, ?)
		`, userID, int(kind), id, string(col), c.now().Unix())
	} else {
		delta = -1
		res, err = tx.ExecContext(ctx, `
			DELETE FROM resource_opinions WHERE user_id = ? AND source_type = ? AND source_id = ? AND counter = ?
		`, userID, int(kind), id, string(col))
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to write opinion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to write opinion: %w", err)
	}
	if n == 0 {
		return value, false, nil
	}

	value, err = addCounterTx(ctx, tx, kind, table, id, column, delta)
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return value, true, nil
}

// FlushReadCount writes back a cached read count. The stored value only
// moves forward, so flushes that land out of order are harmless.
func (c *Client) FlushReadCount(ctx context.Context, kind models.ResourceKind, id int64, value int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET read_count = MAX(read_count, ?) WHERE id = ?`, table)
	if _, err := c.db.ExecContext(ctx, query, value, id); err != nil {
		return fmt.Errorf("failed to flush read count of %s %d: %w", kind, id, err)
	}
	return nil
}

// ResourceTagNames resolves active resource tag ids to their names.
func (c *Client) ResourceTagNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	placeholders, args := inClause(ids)
	args = append(args, models.StatusActive)
	query := fmt.Sprintf(`SELECT id, name FROM resource_tags WHERE id IN (%s) AND status = ?`, placeholders)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resource tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan resource tag: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

func (c *Client) InsertResourceTag(ctx context.Context, tag *models.ResourceTag) error {
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO resource_tags (name, status, created) VALUES (?, ?, ?)`,
		tag.Name, models.StatusActive, c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert resource tag: %w", err)
	}
	tag.ID, err = res.LastInsertId()
	return err
}

func requireAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(what, id)
	}
	return nil
}
