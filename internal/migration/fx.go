package migration

import (
	"github.com/servineo/servineo/internal/billing/domain"
	bookingdomain "github.com/servineo/servineo/internal/booking/domain"
	catalogdomain "github.com/servineo/servineo/internal/catalog/domain"
	"github.com/servineo/servineo/internal/config"
	identitydomain "github.com/servineo/servineo/internal/identity/domain"
	payoutdomain "github.com/servineo/servineo/internal/payout/domain"
	"github.com/servineo/servineo/internal/seed"
	settlementdomain "github.com/servineo/servineo/internal/settlement/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql are for local development only; gorm
			// derives the schema from the models there.
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		}

		if cfg.SeedDemoData {
			return seed.EnsureDemoData(conn)
		}
		return nil
	}),
)

// AutoMigrate creates the schema from the domain models.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&identitydomain.User{},
		&catalogdomain.Service{},
		&bookingdomain.ServiceRequest{},
		&domain.Bill{},
		&settlementdomain.Payment{},
		&settlementdomain.Transfer{},
		&payoutdomain.ProviderPayoutProfile{},
	)
}
