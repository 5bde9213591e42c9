package pagination

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultSize = 10
	MaxSize     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Page int
	Size int
}

// FromContext extracts pagination parameters from the echo context.
// Page is 1-based; out-of-range values fall back to defaults.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}

	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	return Params{Page: page, Size: size}
}

// Response wraps a paginated API response.
type Response struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
	Pages int         `json:"pages"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	return &Response{
		Data:  data,
		Total: total,
		Page:  p.Page,
		Size:  p.Size,
		Pages: pages,
	}
}

// Limit returns the row limit for SQL queries.
func (p Params) Limit() int {
	return p.Size
}

// Offset returns the row offset for SQL queries.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Size
}

// SQL returns the LIMIT and OFFSET clause for SQL queries.
func (p Params) SQL() string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", p.Limit(), p.Offset())
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset()+p.Size < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Page > 1
}
