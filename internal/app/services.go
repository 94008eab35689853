package app

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/jobs"
	"github.com/commutrace/tripsync-backend/internal/keymutex"
	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/policy"
	"github.com/commutrace/tripsync-backend/internal/services"
)

type Services struct {
	Auth          services.AuthService
	Device        services.DeviceService
	Ingestion     services.IngestionService
	Chain         services.ChainService
	Reward        services.RewardService
	Sync          services.SyncService
	Trip          services.TripService
	Consent       services.ConsentService
	Anonymization services.AnonymizationService
	Privacy       services.PrivacyService
	Bucket        services.BucketService
	JobNotifier   services.JobNotifier
	JobWorker     *jobs.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, redisClient *redis.Client) (Services, error) {
	log.Info("Wiring services...")

	pol, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return Services{}, err
	}
	scorer := policy.NewRewardScorer(pol.Reward)
	locks := keymutex.New(0)

	bucket, err := services.NewBucketService(log)
	if err != nil {
		return Services{}, err
	}
	notifier := services.NewJobNotifier(log, redisClient)

	auth := services.NewAuthService(log, []byte(cfg.JWTSecretKey))
	device := services.NewDeviceService(db, log, reposet.DeviceKey)
	ingestion := services.NewIngestionService(db, log, reposet.DeviceKey)
	chain := services.NewChainService(db, log, reposet.TripChain, reposet.Trip)
	reward := services.NewRewardService(db, log, reposet.Reward, scorer, locks)
	sync := services.NewSyncService(db, log, ingestion, reposet.Trip, chain, reward, locks, cfg.SyncOpTimeout)
	trip := services.NewTripService(db, log, reposet.Trip)
	consent := services.NewConsentService(db, log, reposet.Consent)
	anonymization := services.NewAnonymizationService(db, log, reposet.AnonymizationJob, pol, notifier)
	privacy := services.NewPrivacyService(db, log, reposet.Trip, chain, reposet.TripChain, reposet.Reward, reposet.Consent, reposet.Audit, bucket, locks, []byte(cfg.JWTSecretKey), cfg.ExportTTL)

	runner := jobs.NewRunner(db, log, reposet.AnonymizationJob, reposet.Trip, reposet.Consent, reposet.AnonymizedTrip, pol)
	worker := jobs.NewWorker(db, log, reposet.AnonymizationJob, runner, privacy, notifier, cfg.WorkerPollEvery)

	return Services{
		Auth:          auth,
		Device:        device,
		Ingestion:     ingestion,
		Chain:         chain,
		Reward:        reward,
		Sync:          sync,
		Trip:          trip,
		Consent:       consent,
		Anonymization: anonymization,
		Privacy:       privacy,
		Bucket:        bucket,
		JobNotifier:   notifier,
		JobWorker:     worker,
	}, nil
}
