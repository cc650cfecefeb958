package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	// DefaultLimit is the page size used when none is requested
	DefaultLimit = 50
	// MaxLimit caps the page size
	MaxLimit = 500
)

// PaginationRequest holds pagination parameters
type PaginationRequest struct {
	Page  int
	Limit int
}

// Offset returns the number of rows before the page
func (p PaginationRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// PaginatedResponse wraps one page of a list
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination holds pagination metadata
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
	TotalItems int64 `json:"totalItems"`
}

// GetPaginationFromContext reads page and limit from the query string.
// Invalid values fall back to the defaults.
func GetPaginationFromContext(ctx *gin.Context) PaginationRequest {
	page, err := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return PaginationRequest{Page: page, Limit: limit}
}

// ApplyPagination limits a GORM query to the requested page
func ApplyPagination(query *gorm.DB, p PaginationRequest) *gorm.DB {
	return query.Offset(p.Offset()).Limit(p.Limit)
}

// NewPaginatedResponse wraps data with its page metadata
func NewPaginatedResponse(data interface{}, p PaginationRequest, totalItems int64) PaginatedResponse {
	totalPages := 0
	if p.Limit > 0 {
		totalPages = int((totalItems + int64(p.Limit) - 1) / int64(p.Limit))
	}

	return PaginatedResponse{
		Data: data,
		Pagination: Pagination{
			Page:       p.Page,
			Limit:      p.Limit,
			TotalPages: totalPages,
			TotalItems: totalItems,
		},
	}
}
