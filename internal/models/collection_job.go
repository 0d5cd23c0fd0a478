package models

import (
	"strings"
	"time"
)

// Job statuses.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusPaused    = "paused"
	JobStatusCompleted = "completed"
)

// Navigation types accepted by the routing service.
const (
	NavDriving = "driving"
	NavWalking = "walking"
	NavTransit = "transit"
)

const (
	DefaultCycleMinutes = 60
	DefaultDurationDays = 7
	MaxAdditionalRoutes = 2
)

// CollectionJob is a recurring travel-time collection task definition.
type CollectionJob struct {
	ID               string     `gorm:"column:id;primaryKey;size:36" json:"id"`
	Name             string     `gorm:"column:name;size:255" json:"name"`
	StartLocation    string     `gorm:"column:start_location;size:500" json:"start_location"`
	EndLocation      string     `gorm:"column:end_location;size:500" json:"end_location"`
	StartName        string     `gorm:"column:start_name;size:255" json:"start_name"`
	EndName          string     `gorm:"column:end_name;size:255" json:"end_name"`
	CycleSeconds     int        `gorm:"column:cycle_seconds;default:0" json:"cycle_seconds"`
	CycleMinutes     int        `gorm:"column:cycle_minutes;default:60" json:"cycle_minutes"`
	DurationDays     int        `gorm:"column:duration_days;default:7" json:"duration_days"`
	EndTime          *time.Time `gorm:"column:end_time" json:"end_time"`
	NavigationType   string     `gorm:"column:navigation_type;size:20;default:driving" json:"navigation_type"`
	AvoidHighways    bool       `gorm:"column:avoid_highways" json:"avoid_highways"`
	AvoidTolls       bool       `gorm:"column:avoid_tolls" json:"avoid_tolls"`
	AdditionalRoutes int        `gorm:"column:additional_routes;default:0" json:"additional_routes"`
	Status           string     `gorm:"column:status;size:20;index;default:pending" json:"status"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CollectionJob) TableName() string {
	return "collection_jobs"
}

// RequestedInterval returns the cadence the job asked for: cycle_seconds
// wins when set, otherwise cycle_minutes (default 60).
func (j *CollectionJob) RequestedInterval() time.Duration {
	if j.CycleSeconds > 0 {
		return time.Duration(j.CycleSeconds) * time.Second
	}
	minutes := j.CycleMinutes
	if minutes <= 0 {
		minutes = DefaultCycleMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// EffectiveInterval clamps the requested cadence up to the scheduler floor.
func (j *CollectionJob) EffectiveInterval(floor time.Duration) time.Duration {
	interval := j.RequestedInterval()
	if floor > 0 && interval < floor {
		return floor
	}
	return interval
}

// ExpiresAt returns the explicit end_time when set, otherwise
// created_at + duration_days (default 7).
func (j *CollectionJob) ExpiresAt() time.Time {
	if j.EndTime != nil {
		return *j.EndTime
	}
	days := j.DurationDays
	if days <= 0 {
		days = DefaultDurationDays
	}
	return j.CreatedAt.Add(time.Duration(days) * 24 * time.Hour)
}

// Mode normalizes the navigation type; anything unrecognized means driving.
func (j *CollectionJob) Mode() string {
	switch strings.ToLower(strings.TrimSpace(j.NavigationType)) {
	case NavWalking:
		return NavWalking
	case NavTransit:
		return NavTransit
	default:
		return NavDriving
	}
}
