package baseDataService

import (
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

type Pagination struct {
	Page     int
	PageSize int
}

// Normalize clamps the page size into (0, MaxPageSize] and the page to >= 0.
func (p *Pagination) Normalize() *Pagination {
	if p == nil {
		return &Pagination{Page: 0, PageSize: DefaultPageSize}
	}
	out := &Pagination{Page: p.Page, PageSize: p.PageSize}
	if out.Page < 0 {
		out.Page = 0
	}
	if out.PageSize <= 0 {
		out.PageSize = DefaultPageSize
	}
	if out.PageSize > MaxPageSize {
		out.PageSize = MaxPageSize
	}
	return out
}

func (p *Pagination) Offset() int {
	n := p.Normalize()
	return n.Page * n.PageSize
}

type BaseDataService struct {
	DB *gorm.DB
}
