package domain

// Request bodies of the versioned write endpoints. Version is the version
// the caller last read.

type StockUpdate struct {
	Stock   int `json:"stock"`
	Version int `json:"version"`
}

type AppointmentStatusUpdate struct {
	Status  AppointmentStatus `json:"status"`
	Version int               `json:"version"`
}

type SettingsUpdate struct {
	SettingsPatch
	Version int `json:"version"`
}

// ErrorResponse is the body of every non-2xx answer from the service.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
