package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SearchParams are the parameters of one discovery run, stored as JSONB.
// Either DaysBack or the StartDate/EndDate pair is set.
type SearchParams struct {
	DaysBack  int    `json:"days_back,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// Value implements driver.Valuer for JSONB
func (p SearchParams) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB
func (p *SearchParams) Scan(value interface{}) error {
	if value == nil {
		*p = SearchParams{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*p = SearchParams{}
		return nil
	}

	if len(bytes) == 0 {
		*p = SearchParams{}
		return nil
	}

	return json.Unmarshal(bytes, p)
}

// SearchHistory is an append-only log of discovery runs
type SearchHistory struct {
	ID           uuid.UUID    `json:"id"`
	SearchParams SearchParams `json:"search_params"`
	ResultsCount int          `json:"results_count"`
	CreatedAt    time.Time    `json:"created_at"`
}
