package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	// ALERT_PAGE_SIZE is how many alert records one page of history holds
	ALERT_PAGE_SIZE = 50
	MAX_PAGE_SIZE   = 100
)

// BaseModel holds the columns every airis table shares. ID is omitted from
// json when zero, so request bodies can't pick their own id.
type BaseModel struct {
	ID        uint      `json:"id,omitempty" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Paging describes one page of a listing, e.g. GET /alerts?page=2
type Paging struct {
	Total int64 `json:"total"`
	Page  int64 `json:"page"`
	Pages int64 `json:"pages"`
}

// ---------------------------------------------------------------------------------//
// Scopes
// --------------------------------------------------------------------------------//

// paginate limits a query to 'page' (1 based, anything below counts as 1)
func paginate(page, pageSize int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		size := clampPageSize(pageSize)
		return db.Offset((firstPage(page) - 1) * size).Limit(size)
	}
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func newPaging(page, pageSize int, total int64) *Paging {
	size := int64(clampPageSize(pageSize))

	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}

	return &Paging{Total: total, Page: int64(firstPage(page)), Pages: pages}
}

func firstPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func clampPageSize(pageSize int) int {
	switch {
	case pageSize > MAX_PAGE_SIZE:
		return MAX_PAGE_SIZE
	case pageSize <= 0:
		return ALERT_PAGE_SIZE
	}
	return pageSize
}
