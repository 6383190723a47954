package db

import (
	"database/sql"
	"time"

	"github.com/tphummel/sitewatch/internal/models"
)

const agentColumns = `a.id, a.site_id, a.name, a.version, a.os, a.status, a.token_id, a.last_heartbeat, a.created_at, a.updated_at`

// CreateAgent inserts a new agent record.
func (d *DB) CreateAgent(a *models.Agent) error {
	_, err := d.conn.Exec(`
		INSERT INTO agents (id, site_id, name, version, os, status, token_id, last_heartbeat, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SiteID, a.Name, a.Version, a.OS, a.Status, a.TokenID,
		nullTime(a.LastHeartbeat), formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	return err
}

// GetAgent returns the agent with the given ID regardless of tenant, or
// sql.ErrNoRows. It backs agent token verification.
func (d *DB) GetAgent(id string) (*models.Agent, error) {
	row := d.conn.QueryRow(`SELECT `+agentColumns+` FROM agents a WHERE a.id = ?`, id)
	return scanAgent(row)
}

// GetOwnedAgent returns the agent with the given ID if its site belongs to
// ownerID, or sql.ErrNoRows.
func (d *DB) GetOwnedAgent(ownerID, id string) (*models.Agent, error) {
	row := d.conn.QueryRow(`SELECT `+agentColumns+`
		FROM agents a JOIN sites s ON s.id = a.site_id
		WHERE a.id = ? AND s.owner_id = ?`, id, ownerID)
	return scanAgent(row)
}

// ListAgents returns ownerID's agents, optionally for a single site.
func (d *DB) ListAgents(ownerID, siteID string) ([]*models.Agent, error) {
	query := `SELECT ` + agentColumns + `
		FROM agents a JOIN sites s ON s.id = a.site_id
		WHERE s.owner_id = ?`
	args := []any{ownerID}
	if siteID != "" {
		query += ` AND a.site_id = ?`
		args = append(args, siteID)
	}
	query += ` ORDER BY a.name, a.id`

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecordReport stores an agent report and marks the agent online with a
// heartbeat at now, the time the server received it. r.ReportedAt is kept
// on the report only. Returns sql.ErrNoRows if the agent is unknown.
func (d *DB) RecordReport(r *models.AgentReport, now time.Time) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	err = affectedOne(tx.Exec(`
		UPDATE agents SET status=?, last_heartbeat=?, updated_at=? WHERE id=?`,
		models.AgentOnline, formatTime(now), formatTime(now), r.AgentID,
	))
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO agent_reports (agent_id, reported_at, metrics, devices)
		VALUES (?, ?, ?, ?)`,
		r.AgentID, formatTime(r.ReportedAt), string(r.Metrics), string(r.Devices),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ListReports returns the most recent reports for an agent, newest first.
func (d *DB) ListReports(agentID string, limit int) ([]*models.AgentReport, error) {
	rows, err := d.conn.Query(`
		SELECT agent_id, reported_at, metrics, devices
		FROM agent_reports WHERE agent_id = ?
		ORDER BY id DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.AgentReport
	for rows.Next() {
		var r models.AgentReport
		var reportedAt, metrics, devices string
		if err := rows.Scan(&r.AgentID, &reportedAt, &metrics, &devices); err != nil {
			return nil, err
		}
		if r.ReportedAt, err = parseTime("reported_at", reportedAt); err != nil {
			return nil, err
		}
		r.Metrics = []byte(metrics)
		r.Devices = []byte(devices)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func scanAgent(row rowScanner) (*models.Agent, error) {
	var a models.Agent
	var heartbeat sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(
		&a.ID, &a.SiteID, &a.Name, &a.Version, &a.OS, &a.Status, &a.TokenID,
		&heartbeat, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if a.LastHeartbeat, err = parseNullTime("last_heartbeat", heartbeat); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
