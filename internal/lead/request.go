package lead

import (
	"errors"
	"fmt"
)

// Page cap bounds for a single crawl.
const (
	MinPages     = 1
	MaxPages     = 100
	DefaultPages = 5
)

// SearchRequest carries the filters for a keyword, advanced or roster search.
type SearchRequest struct {
	Keywords string `json:"keywords" mapstructure:"keywords"`
	Title    string `json:"title" mapstructure:"title"`
	Location string `json:"location" mapstructure:"location"`
	Industry string `json:"industry" mapstructure:"industry"`
	Company  string `json:"company" mapstructure:"company"`
	MaxPages int    `json:"max_pages" mapstructure:"max_pages"`
}

// WithDefaults fills in the default page cap.
func (r SearchRequest) WithDefaults() SearchRequest {
	if r.MaxPages == 0 {
		r.MaxPages = DefaultPages
	}
	return r
}

// Validate enforces the page cap bounds and the per-source required fields.
func (r SearchRequest) Validate(src Source) error {
	if r.MaxPages < MinPages || r.MaxPages > MaxPages {
		return fmt.Errorf("max_pages must be between %d and %d", MinPages, MaxPages)
	}
	if src == SourceCompany && r.Company == "" {
		return errors.New("company slug is required")
	}
	return nil
}
