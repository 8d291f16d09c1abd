package pagination

import (
	"github.com/gofiber/fiber/v2"
)

const (
	// DefaultLimit applies when ?limit is absent or not positive
	DefaultLimit = 20
	// MaxLimit caps every listing endpoint
	MaxLimit = 100
)

// Params is a 1-based page window read from the query string
type Params struct {
	Page   int `json:"page"`
	Limit  int `json:"limit"`
	Offset int `json:"-"`
}

// Meta describes where a page sits in the full result set
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// Response wraps a listing with its page metadata
type Response struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta"`
}

// GetParams reads ?page and ?limit. Garbage values fall back to defaults.
func GetParams(c *fiber.Ctx) *Params {
	return NewParams(c.QueryInt("page", 1), c.QueryInt("limit", DefaultLimit))
}

// NewParams clamps page and limit into range
func NewParams(page, limit int) *Params {
	page = max(page, 1)
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return &Params{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// GetMeta computes page counts for total rows
func GetMeta(params *Params, total int64) *Meta {
	limit := int64(params.Limit)
	pages := int((total + limit - 1) / limit)

	return &Meta{
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    params.Page < pages,
		HasPrev:    params.Page > 1,
	}
}

// NewResponse pairs data with metadata for total rows
func NewResponse(data interface{}, params *Params, total int64) *Response {
	return &Response{Data: data, Meta: GetMeta(params, total)}
}
