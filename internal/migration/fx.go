package migration

import (
	affiliatedomain "github.com/domijob/domijob/internal/affiliate/domain"
	"github.com/domijob/domijob/internal/authorization"
	"github.com/domijob/domijob/internal/config"
	creditdomain "github.com/domijob/domijob/internal/credit/domain"
	notificationdomain "github.com/domijob/domijob/internal/notification/domain"
	paymentdomain "github.com/domijob/domijob/internal/payment/domain"
	payoutdomain "github.com/domijob/domijob/internal/payout/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Versioned SQL migrations target postgres; other dialects
			// (sqlite in tests and local scratch setups) use AutoMigrate.
			return conn.AutoMigrate(
				&affiliatedomain.Affiliate{},
				&affiliatedomain.Click{},
				&affiliatedomain.Referral{},
				&payoutdomain.Payout{},
				&creditdomain.Balance{},
				&creditdomain.Transaction{},
				&notificationdomain.Notification{},
				&paymentdomain.EventRecord{},
				&authorization.UserRole{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
