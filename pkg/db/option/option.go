package option

import (
	"github.com/servineo/servineo/pkg/db/pagination"
	"gorm.io/gorm"
)

// Option mutates a gorm statement before execution.
type Option interface {
	Apply(*gorm.DB) *gorm.DB
}

type optionFunc func(*gorm.DB) *gorm.DB

func (f optionFunc) Apply(stmt *gorm.DB) *gorm.DB {
	return f(stmt)
}

// ApplyPagination constrains a descending id-ordered query to the page
// described by the cursor token. It fetches one extra row so the caller
// can detect whether more pages remain.
func ApplyPagination(page pagination.Pagination) Option {
	return optionFunc(func(stmt *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = 20
		}

		if page.PageToken != "" {
			cursor, err := pagination.DecodeCursor(page.PageToken)
			if err == nil && cursor.ID != "" {
				stmt = stmt.Where("id < ?", cursor.ID)
			}
		}

		return stmt.Limit(size + 1)
	})
}
