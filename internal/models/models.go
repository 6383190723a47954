package models

import "time"

// SchemaVersion is the version of the persisted entity shapes. It is stored
// in the database's user_version pragma and reported by the health check.
const SchemaVersion = 1

// AgentStaleAfter is how long an agent may go without reporting before it is
// reported as offline.
const AgentStaleAfter = 5 * time.Minute

// User is an account that owns sites. PasswordHash is never serialised.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session is a server-side record of an issued user token.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Site is a physical customer location being monitored.
type Site struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	City       *string   `json:"city,omitempty"`
	PostalCode *string   `json:"postal_code,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Equipment is a network device installed at a site.
type Equipment struct {
	ID              string     `json:"id"`
	SiteID          string     `json:"site_id"`
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	IPAddress       *string    `json:"ip_address"`
	LastMaintenance *time.Time `json:"last_maintenance"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Alert is raised against a piece of equipment.
type Alert struct {
	ID          string     `json:"id"`
	EquipmentID string     `json:"equipment_id"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Description *string    `json:"description,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
}

// Agent is a monitoring agent installed on a site's network.
type Agent struct {
	ID            string     `json:"id"`
	SiteID        string     `json:"site_id"`
	Name          string     `json:"name"`
	Version       string     `json:"version"`
	OS            string     `json:"os"`
	Status        string     `json:"status"`
	TokenID       string     `json:"-"`
	LastHeartbeat *time.Time `json:"last_heartbeat"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// EffectiveStatus reports the agent as offline once its last heartbeat is
// older than AgentStaleAfter.
func (a *Agent) EffectiveStatus(now time.Time) string {
	if a.LastHeartbeat == nil || now.Sub(*a.LastHeartbeat) > AgentStaleAfter {
		return AgentOffline
	}
	return a.Status
}

// AgentReport is one batch of data submitted by an agent. Metrics and Devices
// are stored as the raw JSON the agent sent.
type AgentReport struct {
	AgentID    string    `json:"agent_id"`
	ReportedAt time.Time `json:"timestamp"`
	Metrics    []byte    `json:"metrics"`
	Devices    []byte    `json:"devices"`
}

// Site statuses.
const (
	SiteOnline  = "online"
	SiteOffline = "offline"
	SiteWarning = "warning"
	SitePending = "pending"
)

// Equipment statuses.
const (
	EquipmentOnline      = "online"
	EquipmentOffline     = "offline"
	EquipmentWarning     = "warning"
	EquipmentMaintenance = "maintenance"
)

// Alert statuses.
const (
	AlertNew          = "new"
	AlertAcknowledged = "acknowledged"
	AlertResolved     = "resolved"
)

// Agent statuses.
const (
	AgentOnline  = "online"
	AgentOffline = "offline"
)

// ValidSiteStatuses is the set of allowed site status values.
var ValidSiteStatuses = map[string]bool{
	SiteOnline:  true,
	SiteOffline: true,
	SiteWarning: true,
	SitePending: true,
}

// ValidEquipmentTypes is the set of allowed equipment categories.
var ValidEquipmentTypes = map[string]bool{
	"camera":         true,
	"video_recorder": true,
	"router":         true,
	"switch":         true,
	"server":         true,
	"access_point":   true,
	"other":          true,
}

// ValidEquipmentStatuses is the set of allowed equipment status values.
var ValidEquipmentStatuses = map[string]bool{
	EquipmentOnline:      true,
	EquipmentOffline:     true,
	EquipmentWarning:     true,
	EquipmentMaintenance: true,
}

// ValidAlertTypes is the set of allowed alert severities.
var ValidAlertTypes = map[string]bool{
	"error":   true,
	"warning": true,
	"info":    true,
}

// ValidAlertStatuses is the set of allowed alert lifecycle values.
var ValidAlertStatuses = map[string]bool{
	AlertNew:          true,
	AlertAcknowledged: true,
	AlertResolved:     true,
}
