package models

import "time"

// RouteSnapshot is one persisted measurement for one cycle and one route
// alternative. Snapshots are append-only: the cycle runner creates them,
// nothing updates them, and they go away only with bulk job deletion.
type RouteSnapshot struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	JobID           string    `gorm:"column:job_id;size:36;index:idx_route_snapshots_job_collected,priority:1" json:"job_id"`
	RouteIndex      int       `gorm:"column:route_index;default:0" json:"route_index"`
	CollectedAt     time.Time `gorm:"column:collected_at;index:idx_route_snapshots_job_collected,priority:2" json:"collected_at"`
	DurationSeconds *int      `gorm:"column:duration_seconds" json:"duration_seconds"`
	DistanceMeters  *int      `gorm:"column:distance_meters" json:"distance_meters"`
	RouteDetails    string    `gorm:"column:route_details;type:longtext" json:"route_details"`
}

func (RouteSnapshot) TableName() string {
	return "route_snapshots"
}
