package db

import (
	"database/sql"

	"github.com/tphummel/sitewatch/internal/models"
)

const equipmentColumns = `e.id, e.site_id, e.name, e.type, e.status, e.ip_address, e.last_maintenance, e.created_at, e.updated_at`

// EquipmentFilter narrows ListEquipment. Empty fields do not filter.
type EquipmentFilter struct {
	SiteID string
	Status string
	Type   string
}

// CreateEquipment inserts a new equipment record. The caller is responsible
// for checking that the site belongs to the tenant.
func (d *DB) CreateEquipment(e *models.Equipment) error {
	_, err := d.conn.Exec(`
		INSERT INTO equipment (id, site_id, name, type, status, ip_address, last_maintenance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SiteID, e.Name, e.Type, e.Status,
		nullString(e.IPAddress), nullTime(e.LastMaintenance),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	return err
}

// GetEquipment returns the equipment with the given ID if it belongs to one
// of ownerID's sites, or sql.ErrNoRows.
func (d *DB) GetEquipment(ownerID, id string) (*models.Equipment, error) {
	row := d.conn.QueryRow(`
		SELECT `+equipmentColumns+`
		FROM equipment e JOIN sites s ON s.id = e.site_id
		WHERE e.id = ? AND s.owner_id = ?`, id, ownerID)
	return scanEquipment(row)
}

// ListEquipment returns ownerID's equipment ordered by name.
func (d *DB) ListEquipment(ownerID string, f EquipmentFilter) ([]*models.Equipment, error) {
	query := `SELECT ` + equipmentColumns + `
		FROM equipment e JOIN sites s ON s.id = e.site_id
		WHERE s.owner_id = ?`
	args := []any{ownerID}
	if f.SiteID != "" {
		query += ` AND e.site_id = ?`
		args = append(args, f.SiteID)
	}
	if f.Status != "" {
		query += ` AND e.status = ?`
		args = append(args, f.Status)
	}
	if f.Type != "" {
		query += ` AND e.type = ?`
		args = append(args, f.Type)
	}
	query += ` ORDER BY e.name, e.id`

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEquipment replaces all mutable fields for the equipment with e.ID.
// Returns sql.ErrNoRows if it does not belong to ownerID.
func (d *DB) UpdateEquipment(ownerID string, e *models.Equipment) error {
	return affectedOne(d.conn.Exec(`
		UPDATE equipment
		SET site_id=?, name=?, type=?, status=?, ip_address=?, last_maintenance=?, updated_at=?
		WHERE id=? AND site_id IN (SELECT id FROM sites WHERE owner_id = ?)`,
		e.SiteID, e.Name, e.Type, e.Status,
		nullString(e.IPAddress), nullTime(e.LastMaintenance),
		formatTime(e.UpdatedAt),
		e.ID, ownerID,
	))
}

// DeleteEquipment removes the equipment and its alerts. Returns
// sql.ErrNoRows if it does not belong to ownerID.
func (d *DB) DeleteEquipment(ownerID, id string) error {
	return affectedOne(d.conn.Exec(`
		DELETE FROM equipment
		WHERE id = ? AND site_id IN (SELECT id FROM sites WHERE owner_id = ?)`, id, ownerID))
}

func scanEquipment(row rowScanner) (*models.Equipment, error) {
	var e models.Equipment
	var ip, lastMaintenance sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(
		&e.ID, &e.SiteID, &e.Name, &e.Type, &e.Status,
		&ip, &lastMaintenance,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	e.IPAddress = stringPtr(ip)
	var err error
	if e.LastMaintenance, err = parseNullTime("last_maintenance", lastMaintenance); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
