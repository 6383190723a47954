// Package stats folds equipment and alert rows into per-status counters.
package stats

// EquipmentRow is the projection of an equipment record needed for counting.
type EquipmentRow struct {
	Status string
}

// AlertRow is the projection of an alert record needed for counting.
type AlertRow struct {
	Type   string
	Status string
}

// SiteStats holds equipment counts by status and alert counts by type, then
// status.
type SiteStats struct {
	Equipment map[string]int            `json:"equipment"`
	Alerts    map[string]map[string]int `json:"alerts"`
}

// Aggregate counts rows by key. Keys are taken verbatim from the input; empty
// input yields empty, non-nil maps.
func Aggregate(equipment []EquipmentRow, alerts []AlertRow) SiteStats {
	s := SiteStats{
		Equipment: make(map[string]int),
		Alerts:    make(map[string]map[string]int),
	}
	for _, e := range equipment {
		s.Equipment[e.Status]++
	}
	for _, a := range alerts {
		byStatus, ok := s.Alerts[a.Type]
		if !ok {
			byStatus = make(map[string]int)
			s.Alerts[a.Type] = byStatus
		}
		byStatus[a.Status]++
	}
	return s
}
