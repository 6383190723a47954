package db

import (
	"database/sql"

	"github.com/tphummel/sitewatch/internal/models"
)

const alertColumns = `a.id, a.equipment_id, a.type, a.title, a.message, a.description, a.status, a.created_at, a.updated_at, a.resolved_at`

// ownedEquipment restricts an equipment_id column to ownerID's equipment.
const ownedEquipment = `SELECT e.id FROM equipment e JOIN sites s ON s.id = e.site_id WHERE s.owner_id = ?`

// AlertFilter narrows ListAlerts. Empty fields do not filter.
type AlertFilter struct {
	EquipmentID string
	SiteID      string
	Status      string
	Type        string
}

// CreateAlert inserts a new alert record.
func (d *DB) CreateAlert(a *models.Alert) error {
	_, err := d.conn.Exec(`
		INSERT INTO alerts (id, equipment_id, type, title, message, description, status, created_at, updated_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EquipmentID, a.Type, a.Title, a.Message,
		nullString(a.Description), a.Status,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt), nullTime(a.ResolvedAt),
	)
	return err
}

// GetAlert returns the alert with the given ID if it belongs to ownerID's
// equipment, or sql.ErrNoRows.
func (d *DB) GetAlert(ownerID, id string) (*models.Alert, error) {
	row := d.conn.QueryRow(`
		SELECT `+alertColumns+`
		FROM alerts a
		WHERE a.id = ? AND a.equipment_id IN (`+ownedEquipment+`)`, id, ownerID)
	return scanAlert(row)
}

// ListAlerts returns ownerID's alerts, newest first.
func (d *DB) ListAlerts(ownerID string, f AlertFilter) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + `
		FROM alerts a JOIN equipment e ON e.id = a.equipment_id JOIN sites s ON s.id = e.site_id
		WHERE s.owner_id = ?`
	args := []any{ownerID}
	if f.EquipmentID != "" {
		query += ` AND a.equipment_id = ?`
		args = append(args, f.EquipmentID)
	}
	if f.SiteID != "" {
		query += ` AND e.site_id = ?`
		args = append(args, f.SiteID)
	}
	if f.Status != "" {
		query += ` AND a.status = ?`
		args = append(args, f.Status)
	}
	if f.Type != "" {
		query += ` AND a.type = ?`
		args = append(args, f.Type)
	}
	query += ` ORDER BY a.created_at DESC, a.id`

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateAlert replaces all mutable fields for the alert with a.ID. Returns
// sql.ErrNoRows if it does not belong to ownerID.
func (d *DB) UpdateAlert(ownerID string, a *models.Alert) error {
	return affectedOne(d.conn.Exec(`
		UPDATE alerts
		SET equipment_id=?, type=?, title=?, message=?, description=?, status=?, updated_at=?, resolved_at=?
		WHERE id=? AND equipment_id IN (`+ownedEquipment+`)`,
		a.EquipmentID, a.Type, a.Title, a.Message, nullString(a.Description), a.Status,
		formatTime(a.UpdatedAt), nullTime(a.ResolvedAt),
		a.ID, ownerID,
	))
}

// DeleteAlert removes the alert. Returns sql.ErrNoRows if it does not belong
// to ownerID.
func (d *DB) DeleteAlert(ownerID, id string) error {
	return affectedOne(d.conn.Exec(`
		DELETE FROM alerts
		WHERE id = ? AND equipment_id IN (`+ownedEquipment+`)`, id, ownerID))
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var description, resolvedAt sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(
		&a.ID, &a.EquipmentID, &a.Type, &a.Title, &a.Message,
		&description, &a.Status,
		&createdAt, &updatedAt, &resolvedAt,
	); err != nil {
		return nil, err
	}
	a.Description = stringPtr(description)
	var err error
	if a.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	if a.ResolvedAt, err = parseNullTime("resolved_at", resolvedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
