package models

// APIResponse is the standard envelope for all API endpoints.
type APIResponse struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}

// PaginatedResponse wraps list results with pagination info.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// CreateJobRequest is the payload for POST /api/jobs.
type CreateJobRequest struct {
	Name             string `json:"name"`
	StartLocation    string `json:"start_location"`
	EndLocation      string `json:"end_location"`
	StartName        string `json:"start_name"`
	EndName          string `json:"end_name"`
	CycleSeconds     int    `json:"cycle_seconds"`
	CycleMinutes     int    `json:"cycle_minutes"`
	DurationDays     int    `json:"duration_days"`
	EndTime          string `json:"end_time"` // RFC3339, optional
	NavigationType   string `json:"navigation_type"`
	AvoidHighways    bool   `json:"avoid_highways"`
	AvoidTolls       bool   `json:"avoid_tolls"`
	AdditionalRoutes int    `json:"additional_routes"`
	Autostart        bool   `json:"autostart"`
}

// UpdateJobRequest is the payload for PUT /api/jobs/:id. Pointer fields
// distinguish "not sent" from zero values.
type UpdateJobRequest struct {
	Name             *string `json:"name"`
	StartName        *string `json:"start_name"`
	EndName          *string `json:"end_name"`
	CycleSeconds     *int    `json:"cycle_seconds"`
	CycleMinutes     *int    `json:"cycle_minutes"`
	DurationDays     *int    `json:"duration_days"`
	EndTime          *string `json:"end_time"`
	NavigationType   *string `json:"navigation_type"`
	AvoidHighways    *bool   `json:"avoid_highways"`
	AvoidTolls       *bool   `json:"avoid_tolls"`
	AdditionalRoutes *int    `json:"additional_routes"`
}
