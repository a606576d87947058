package http

// APIResponse is the envelope of every archive API response.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field. Field is the wire path,
// e.g. "prices[0].price".
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"symbol"`
	Message string                 `json:"message,omitempty" example:"symbol is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse wraps history reads. Total is the number of rows returned, which
// never exceeds the requested window in days.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}
