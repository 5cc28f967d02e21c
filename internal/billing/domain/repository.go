package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, bill *Bill) error
	FindByRequestID(ctx context.Context, db *gorm.DB, requestID snowflake.ID) (*Bill, error)
	// MarkPaid flips an unpaid bill to paid. It returns false when the
	// bill was already paid.
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time) (bool, error)
}
