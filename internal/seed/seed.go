package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/servineo/servineo/internal/catalog/domain"
	identitydomain "github.com/servineo/servineo/internal/identity/domain"
	"gorm.io/gorm"
)

const (
	demoCustomerEmail = "customer@servineo.dev"
	demoProviderEmail = "provider@servineo.dev"
)

// EnsureDemoData seeds a demo customer, provider and a small catalog so
// a fresh local install can exercise the booking flow immediately.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureUser(ctx, tx, node, identitydomain.User{
			Name:        "Demo Customer",
			Email:       demoCustomerEmail,
			PhoneNumber: "+911234567890",
			Address:     "12 MG Road, Bengaluru",
			Role:        identitydomain.RoleCustomer,
		}); err != nil {
			return err
		}

		provider, err := ensureUser(ctx, tx, node, identitydomain.User{
			Name:        "Demo Provider",
			Email:       demoProviderEmail,
			PhoneNumber: "+919876543210",
			Address:     "4 Residency Road, Bengaluru",
			Role:        identitydomain.RoleProvider,
		})
		if err != nil {
			return err
		}

		for _, offering := range []catalogdomain.Service{
			{Name: "Plumbing", Description: "Leak repair and fittings", Price: 50000},
			{Name: "Electrical", Description: "Wiring and appliance checks", Price: 75000},
			{Name: "House Cleaning", Description: "Full home deep clean", Price: 120000},
		} {
			if err := ensureService(ctx, tx, node, provider.ID, offering); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensureUser(ctx context.Context, tx *gorm.DB, node *snowflake.Node, user identitydomain.User) (identitydomain.User, error) {
	var existing identitydomain.User
	err := tx.WithContext(ctx).
		Model(&identitydomain.User{}).
		Where("email = ?", user.Email).
		First(&existing).Error
	if err == nil {
		return existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return identitydomain.User{}, err
	}

	user.ID = node.Generate()
	user.CreatedAt = time.Now().UTC()
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return identitydomain.User{}, err
	}
	return user, nil
}

func ensureService(ctx context.Context, tx *gorm.DB, node *snowflake.Node, providerID snowflake.ID, offering catalogdomain.Service) error {
	var existing catalogdomain.Service
	err := tx.WithContext(ctx).
		Model(&catalogdomain.Service{}).
		Where("provider_id = ? AND name = ?", providerID, offering.Name).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}

	offering.ID = node.Generate()
	offering.ProviderID = providerID
	offering.CreatedAt = time.Now().UTC()
	return tx.WithContext(ctx).Create(&offering).Error
}
