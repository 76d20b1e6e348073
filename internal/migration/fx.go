package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Provide(NewGate),
)

// Run applies migrations at start-up. It is only wired into the migrate
// command so that serving processes never change the schema.
var Run = fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB, log.Named("migration"))
})
