package db

import (
	"database/sql"
	"strings"

	"github.com/tphummel/sitewatch/internal/models"
)

const siteColumns = `id, owner_id, name, address, city, postal_code, status, created_at, updated_at`

// SiteFilter narrows ListSites. Empty fields do not filter.
type SiteFilter struct {
	Status string
	// Search matches a case-insensitive substring of name or address.
	Search string
}

// CreateSite inserts a new site record.
func (d *DB) CreateSite(s *models.Site) error {
	_, err := d.conn.Exec(`
		INSERT INTO sites (`+siteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, s.Name, s.Address,
		nullString(s.City), nullString(s.PostalCode), s.Status,
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt),
	)
	return err
}

// GetSite returns the site with the given ID owned by ownerID, or
// sql.ErrNoRows.
func (d *DB) GetSite(ownerID, id string) (*models.Site, error) {
	row := d.conn.QueryRow(`
		SELECT `+siteColumns+`
		FROM sites WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanSite(row)
}

// ListSites returns the sites owned by ownerID ordered by name.
func (d *DB) ListSites(ownerID string, f SiteFilter) ([]*models.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE owner_id = ?`
	args := []any{ownerID}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Search != "" {
		query += ` AND (LOWER(name) LIKE ? OR LOWER(address) LIKE ?)`
		pattern := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY name, id`

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*models.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

// UpdateSite replaces all mutable fields for the site with s.ID owned by
// s.OwnerID. Returns sql.ErrNoRows if no such site exists.
func (d *DB) UpdateSite(s *models.Site) error {
	return affectedOne(d.conn.Exec(`
		UPDATE sites
		SET name=?, address=?, city=?, postal_code=?, status=?, updated_at=?
		WHERE id=? AND owner_id=?`,
		s.Name, s.Address, nullString(s.City), nullString(s.PostalCode), s.Status,
		formatTime(s.UpdatedAt),
		s.ID, s.OwnerID,
	))
}

// DeleteSite removes the site and, by cascade, its equipment, alerts and
// agents. Returns sql.ErrNoRows if no such site exists for ownerID.
func (d *DB) DeleteSite(ownerID, id string) error {
	return affectedOne(d.conn.Exec(`DELETE FROM sites WHERE id = ? AND owner_id = ?`, id, ownerID))
}

func scanSite(row rowScanner) (*models.Site, error) {
	var s models.Site
	var city, postalCode sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(
		&s.ID, &s.OwnerID, &s.Name, &s.Address,
		&city, &postalCode, &s.Status,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	s.City = stringPtr(city)
	s.PostalCode = stringPtr(postalCode)
	var err error
	if s.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
