package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

// ListDimensions returns the active dimensions by ascending sort order.
// A sort order of zero means unsorted and goes last.
func (c *Client) ListDimensions(ctx context.Context) ([]*models.Dimension, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, subtitle, description, sort_order, status, created, updated
		FROM dimensions
		WHERE status = ?
		ORDER BY CASE WHEN sort_order = 0 THEN 1 ELSE 0 END, sort_order, id
	`, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list dimensions: %w", err)
	}
	defer rows.Close()

	var dims []*models.Dimension
	for rows.Next() {
		d, err := scanDimension(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dimension: %w", err)
		}
		dims = append(dims, d)
	}
	return dims, rows.Err()
}

func (c *Client) GetDimension(ctx context.Context, id int64) (*models.Dimension, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, name, subtitle, description, sort_order, status, created, updated
		FROM dimensions
		WHERE id = ? AND status = ?
	`, id, models.StatusActive)

	d, err := scanDimension(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("dimension", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dimension: %w", err)
	}
	return d, nil
}

func scanDimension(row rowScanner) (*models.Dimension, error) {
	var (
		d                        models.Dimension
		createdUnix, updatedUnix int64
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Subtitle, &d.Description, &d.SortOrder, &d.Status, &createdUnix, &updatedUnix); err != nil {
		return nil, err
	}
	d.Created = time.Unix(createdUnix, 0)
	d.Updated = time.Unix(updatedUnix, 0)
	return &d, nil
}

func (c *Client) ListAttributes(ctx context.Context, dimensionID int64) ([]*models.Attribute, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, name, description, dimension_id, status
		FROM attributes
		WHERE dimension_id = ? AND status = ?
		ORDER BY id
	`, dimensionID, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list attributes: %w", err)
	}
	defer rows.Close()

	var attrs []*models.Attribute
	for rows.Next() {
		var a models.Attribute
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.DimensionID, &a.Status); err != nil {
			return nil, fmt.Errorf("failed to scan attribute: %w", err)
		}
		attrs = append(attrs, &a)
	}
	return attrs, rows.Err()
}

// ListTagConfigures returns the active tag weights of the given attributes.
func (c *Client) ListTagConfigures(ctx context.Context, attributeIDs []int64) ([]*models.TagConfigure, error) {
	if len(attributeIDs) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(attributeIDs)
	args = append(args, models.StatusActive)
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, tag_id, attribute_id, match_value, status
		FROM tag_configures
		WHERE attribute_id IN (%s) AND status = ?
		ORDER BY id
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tag configures: %w", err)
	}
	defer rows.Close()

	var configs []*models.TagConfigure
	for rows.Next() {
		var tc models.TagConfigure
		if err := rows.Scan(&tc.ID, &tc.TagID, &tc.AttributeID, &tc.MatchValue, &tc.Status); err != nil {
			return nil, fmt.Errorf("failed to scan tag configure: %w", err)
		}
		configs = append(configs, &tc)
	}
	return configs, rows.Err()
}

func (c *Client) ListTags(ctx context.Context, ids []int64) ([]*models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(ids)
	args = append(args, models.StatusActive)
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, name, description, status
		FROM tags
		WHERE id IN (%s) AND status = ?
		ORDER BY id
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []*models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Status); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

// ListAttributeMembers returns the resources associated with an attribute
// under a dimension, ordered by kind then id.
func (c *Client) ListAttributeMembers(ctx context.Context, dimensionID, attributeID int64) ([]models.ResourceRef, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT source_type, media_id
		FROM media_configures
		WHERE dimension_id = ? AND attribute_id = ? AND status = ?
		ORDER BY source_type, media_id
	`, dimensionID, attributeID, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list media configures: %w", err)
	}
	defer rows.Close()

	var refs []models.ResourceRef
	for rows.Next() {
		var ref models.ResourceRef
		if err := rows.Scan(&ref.Kind, &ref.ID); err != nil {
			return nil, fmt.Errorf("failed to scan media configure: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (c *Client) GetAdjustCoefficient(ctx context.Context, name string) (float64, error) {
	var value float64
	err := c.db.QueryRowContext(ctx, `
		SELECT value FROM adjust_coefficients
		WHERE name = ? AND status = ?
		ORDER BY id DESC LIMIT 1
	`, name, models.StatusActive).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound("adjust coefficient", name)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get adjust coefficient: %w", err)
	}
	return value, nil
}

func (c *Client) InsertDimension(ctx context.Context, d *models.Dimension) error {
	now := c.now()
	d.Status = models.StatusActive
	d.Created, d.Updated = now, now

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO dimensions (name, subtitle, description, sort_order, status, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.Name, d.Subtitle, d.Description, d.SortOrder, d.Status, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert dimension: %w", err)
	}
	d.ID, err = res.LastInsertId()
	return err
}

func (c *Client) InsertAttribute(ctx context.Context, a *models.Attribute) error {
	now := c.now().Unix()
	a.Status = models.StatusActive

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO attributes (name, description, dimension_id, status, created, updated)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.Name, a.Description, a.DimensionID, a.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert attribute: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

func (c *Client) InsertTag(ctx context.Context, t *models.Tag) error {
	now := c.now().Unix()
	t.Status = models.StatusActive

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO tags (name, description, status, created, updated)
		VALUES (?, ?, ?, ?, ?)
	`, t.Name, t.Description, t.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert tag: %w", err)
	}
	t.ID, err = res.LastInsertId()
	return err
}

func (c *Client) InsertTagConfigure(ctx context.Context, tc *models.TagConfigure) error {
	now := c.now().Unix()
	tc.Status = models.StatusActive
	if tc.MatchValue == 0 {
		tc.MatchValue = 1.0
	}

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO tag_configures (tag_id, attribute_id, match_value, status, created, updated)
		VALUES (?, ?, ?, ?, ?, ?)
	`, tc.TagID, tc.AttributeID, tc.MatchValue, tc.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert tag configure: %w", err)
	}
	tc.ID, err = res.LastInsertId()
	return err
}

func (c *Client) InsertMediaConfigure(ctx context.Context, mc *models.MediaConfigure) error {
	now := c.now().Unix()
	mc.Status = models.StatusActive
	if mc.SourceType == 0 {
		mc.SourceType = models.KindMedia
	}

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO media_configures (source_type, media_id, dimension_id, attribute_id, status, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, mc.SourceType, mc.MediaID, mc.DimensionID, mc.AttributeID, mc.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert media configure: %w", err)
	}
	mc.ID, err = res.LastInsertId()
	return err
}

// SetAdjustCoefficient retires any active coefficient with the same name
// and inserts the new value.
func (c *Client) SetAdjustCoefficient(ctx context.Context, name string, value float64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := c.now().Unix()
	if _, err := tx.ExecContext(ctx, `
		UPDATE adjust_coefficients SET status = ?, updated = ? WHERE name = ? AND status = ?
	`, models.StatusDeleted, now, name, models.StatusActive); err != nil {
		return fmt.Errorf("failed to retire adjust coefficient: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO adjust_coefficients (name, value, status, created, updated)
		VALUES (?, ?, ?, ?, ?)
	`, name, value, models.StatusActive, now, now); err != nil {
		return fmt.Errorf("failed to insert adjust coefficient: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
