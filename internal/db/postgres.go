package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/types"
	"github.com/commutrace/tripsync-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	log.Info("Loading environment variables...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "tripsync", log)
	log.Debug("Environment variables loaded")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.User{},
		&types.DeviceKey{},
		&types.Trip{},
		&types.TripChain{},
		&types.RewardPoints{},
		&types.RewardTransaction{},
		&types.ConsentRecord{},
		&types.AnonymizationJob{},
		&types.AnonymizedTrip{},
		&types.DataExport{},
		&types.DataDeletion{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring foreign key relationships for postgres tables...")
	// Cascades are explicit here rather than left to AutoMigrate: deleting a
	// user removes their trips, chains and consent rows; deleting a trip must
	// NULL the ledger reference, never touch balances or transactions.
	constraints := []struct {
		name string
		sql  string
	}{
		{"fk_device_key_user_id", `
			ALTER TABLE "device_key"
			ADD CONSTRAINT "fk_device_key_user_id"
			FOREIGN KEY ("user_id") REFERENCES "user"("id")
			ON DELETE CASCADE`},
		{"fk_trip_user_id", `
			ALTER TABLE "trip"
			ADD CONSTRAINT "fk_trip_user_id"
			FOREIGN KEY ("user_id") REFERENCES "user"("id")
			ON DELETE CASCADE`},
		{"fk_trip_chain_user_id", `
			ALTER TABLE "trip_chain"
			ADD CONSTRAINT "fk_trip_chain_user_id"
			FOREIGN KEY ("user_id") REFERENCES "user"("id")
			ON DELETE CASCADE`},
		{"fk_reward_points_user_id", `
			ALTER TABLE "reward_points"
			ADD CONSTRAINT "fk_reward_points_user_id"
			FOREIGN KEY ("user_id") REFERENCES "user"("id")
			ON DELETE CASCADE`},
		{"fk_reward_transaction_user_id", `
			ALTER TABLE "reward_transaction"
			ADD CONSTRAINT "fk_reward_transaction_user_id"
			FOREIGN KEY ("user_id") REFERENCES "user"("id")
			ON DELETE CASCADE`},
		{"fk_reward_transaction_trip_id", `
			ALTER TABLE "reward_transaction"
			ADD CONSTRAINT "fk_reward_transaction_trip_id"
			FOREIGN KEY ("trip_id") REFERENCES "trip"("id")
			ON DELETE SET NULL`},
		{"fk_consent_record_user_id", `
			ALTER TABLE "consent_record"
			ADD CONSTRAINT "fk_consent_record_user_id"
			FOREIGN KEY ("user_id") REFERENCES "user"("id")
			ON DELETE CASCADE`},
	}
	for _, c := range constraints {
		if err := s.db.Exec(fmt.Sprintf(`ALTER TABLE IF EXISTS %s DROP CONSTRAINT IF EXISTS %q`, tableOf(c.name), c.name)).Error; err != nil {
			return fmt.Errorf("Failed to drop %s: %w", c.name, err)
		}
		if err := s.db.Exec(c.sql).Error; err != nil {
			return fmt.Errorf("Failed to add %s: %w", c.name, err)
		}
	}
	return nil
}

func tableOf(constraint string) string {
	switch constraint {
	case "fk_device_key_user_id":
		return `"device_key"`
	case "fk_trip_user_id":
		return `"trip"`
	case "fk_trip_chain_user_id":
		return `"trip_chain"`
	case "fk_reward_points_user_id":
		return `"reward_points"`
	case "fk_reward_transaction_user_id", "fk_reward_transaction_trip_id":
		return `"reward_transaction"`
	case "fk_consent_record_user_id":
		return `"consent_record"`
	}
	return `"unknown"`
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
