package db

import "github.com/tphummel/sitewatch/internal/stats"

// SiteStats aggregates the equipment and alert statuses of one of ownerID's
// sites. Returns sql.ErrNoRows if the site does not belong to ownerID.
func (d *DB) SiteStats(ownerID, siteID string) (stats.SiteStats, error) {
	var exists int
	err := d.conn.QueryRow(`SELECT 1 FROM sites WHERE id = ? AND owner_id = ?`, siteID, ownerID).Scan(&exists)
	if err != nil {
		return stats.SiteStats{}, err
	}

	equipment, err := d.equipmentRows(`SELECT status FROM equipment WHERE site_id = ?`, siteID)
	if err != nil {
		return stats.SiteStats{}, err
	}
	alerts, err := d.alertRows(`
		SELECT a.type, a.status
		FROM alerts a JOIN equipment e ON e.id = a.equipment_id
		WHERE e.site_id = ?`, siteID)
	if err != nil {
		return stats.SiteStats{}, err
	}
	return stats.Aggregate(equipment, alerts), nil
}

// StatusCounts aggregates equipment and alert statuses across every site.
func (d *DB) StatusCounts() (stats.SiteStats, error) {
	equipment, err := d.equipmentRows(`SELECT status FROM equipment`)
	if err != nil {
		return stats.SiteStats{}, err
	}
	alerts, err := d.alertRows(`SELECT type, status FROM alerts`)
	if err != nil {
		return stats.SiteStats{}, err
	}
	return stats.Aggregate(equipment, alerts), nil
}

func (d *DB) equipmentRows(query string, args ...any) ([]stats.EquipmentRow, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []stats.EquipmentRow
	for rows.Next() {
		var r stats.EquipmentRow
		if err := rows.Scan(&r.Status); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) alertRows(query string, args ...any) ([]stats.AlertRow, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []stats.AlertRow
	for rows.Next() {
		var r stats.AlertRow
		if err := rows.Scan(&r.Type, &r.Status); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
