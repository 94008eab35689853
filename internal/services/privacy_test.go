package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/commutrace/tripsync-backend/internal/keymutex"
	pkgerrors "github.com/commutrace/tripsync-backend/internal/pkg/errors"
	"github.com/commutrace/tripsync-backend/internal/repos"
	"github.com/commutrace/tripsync-backend/internal/types"
)

// fakeBucket keeps objects in memory so export tests run without GCS.
type fakeBucket struct {
	objects map[string][]byte
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (b *fakeBucket) Enabled() bool { return true }

func (b *fakeBucket) UploadFile(_ context.Context, key string, file io.Reader) (int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, file)
	if err != nil {
		return 0, err
	}
	b.objects[key] = buf.Bytes()
	return n, nil
}

func (b *fakeBucket) DeleteFile(_ context.Context, key string) error {
	delete(b.objects, key)
	return nil
}

func (b *fakeBucket) SignedURL(key string, _ time.Duration) (string, error) {
	if _, ok := b.objects[key]; !ok {
		return "", fmt.Errorf("no such object %q", key)
	}
	return "https://signed.example/" + key, nil
}

type privacyFixture struct {
	*syncFixture
	privacy PrivacyService
	audits  repos.AuditRepo
	bucket  *fakeBucket
}

func newPrivacyFixture(t *testing.T) *privacyFixture {
	t.Helper()
	sf := newSyncFixture(t)
	log := newTestLogger(t)
	tripRepo := repos.NewTripRepo(sf.db, log)
	chainRepo := repos.NewTripChainRepo(sf.db, log)
	rewardRepo := repos.NewRewardRepo(sf.db, log)
	consentRepo := repos.NewConsentRepo(sf.db, log)
	auditRepo := repos.NewAuditRepo(sf.db, log)
	chainSvc := NewChainService(sf.db, log, chainRepo, tripRepo)
	bucket := newFakeBucket()
	privacy := NewPrivacyService(
		sf.db, log,
		tripRepo, chainSvc, chainRepo, rewardRepo, consentRepo, auditRepo,
		bucket, keymutex.New(0), []byte("test-secret"), time.Hour,
	)
	return &privacyFixture{syncFixture: sf, privacy: privacy, audits: auditRepo, bucket: bucket}
}

func TestExportWritesArchiveAndAuditRow(t *testing.T) {
	f := newPrivacyFixture(t)
	start := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	payload := basePayload(uuid.New(), uuid.New(), start, 600, 3200)
	payload.Notes = "dentist appointment"
	if got := f.syncOne(t, payload); len(got.Synced) != 1 {
		t.Fatalf("seed sync failed: %+v", got.Failed)
	}

	export, err := f.privacy.Export(context.Background(), f.userID, ExportRequest{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if export.DownloadURL == "" || export.FileSize == 0 {
		t.Fatalf("export row incomplete: %+v", export)
	}
	raw, ok := f.bucket.objects[export.BucketKey]
	if !ok {
		t.Fatalf("archive object missing")
	}
	var doc exportDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("archive not valid json: %v", err)
	}
	if len(doc.Trips) != 1 || doc.Trips[0].ID != payload.TripID {
		t.Fatalf("archive trips wrong: %+v", doc.Trips)
	}
	// Sensitive fields stay out unless asked for.
	if doc.Trips[0].Notes != "" {
		t.Fatalf("default export leaked notes")
	}

	sensitive, err := f.privacy.Export(context.Background(), f.userID, ExportRequest{IncludeSensitive: true})
	if err != nil {
		t.Fatalf("sensitive export: %v", err)
	}
	var sensitiveDoc exportDocument
	if err := json.Unmarshal(f.bucket.objects[sensitive.BucketKey], &sensitiveDoc); err != nil {
		t.Fatalf("sensitive archive: %v", err)
	}
	if sensitiveDoc.Trips[0].Notes != "dentist appointment" {
		t.Fatalf("include_sensitive export dropped notes")
	}
}

func TestDeleteRequiresValidToken(t *testing.T) {
	f := newPrivacyFixture(t)
	_, err := f.privacy.Delete(context.Background(), f.userID, DeleteRequest{
		ConfirmationToken: "guessed",
		DeleteAll:         true,
	})
	if !errors.Is(err, pkgerrors.ErrForbidden) {
		t.Fatalf("bad token error=%v, want forbidden", err)
	}
}

func TestDeleteRemovesTripsKeepsLedger(t *testing.T) {
	f := newPrivacyFixture(t)
	start := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	chainID := uuid.New()
	a := basePayload(uuid.New(), chainID, start, 600, 3200)
	b := basePayload(uuid.New(), chainID, start.Add(time.Hour), 600, 2100)
	for _, p := range []tripPayload{a, b} {
		if got := f.syncOne(t, p); len(got.Synced) != 1 {
			t.Fatalf("seed sync failed: %+v", got.Failed)
		}
	}
	before, _ := f.rewards.GetPoints(context.Background(), nil, f.userID)

	deletion, err := f.privacy.Delete(context.Background(), f.userID, DeleteRequest{
		ConfirmationToken: f.privacy.DeletionToken(f.userID),
		DeleteAll:         true,
	})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deletion.TripCount != 2 {
		t.Fatalf("audit trip count=%d, want 2", deletion.TripCount)
	}
	var auditIDs []uuid.UUID
	if err := json.Unmarshal(deletion.TripIDs, &auditIDs); err != nil {
		t.Fatalf("audit trip_ids: %v", err)
	}
	if len(auditIDs) != 2 {
		t.Fatalf("audit ids=%v, want both trips", auditIDs)
	}

	for _, p := range []tripPayload{a, b} {
		trip, _ := f.trips.GetByID(context.Background(), nil, p.TripID)
		if trip != nil {
			t.Fatalf("trip %s survived deletion", p.TripID)
		}
	}
	// The empty chain goes away with its members.
	chain, _ := f.chains.GetByID(context.Background(), nil, chainID)
	if chain != nil {
		t.Fatalf("empty chain survived deletion")
	}
	// Ledger history and balances stay, trip references become NULL.
	after, _ := f.rewards.GetPoints(context.Background(), nil, f.userID)
	if after.TotalPoints != before.TotalPoints || after.AvailablePoints != before.AvailablePoints {
		t.Fatalf("deletion changed balances: before=%+v after=%+v", before, after)
	}
	txns, _ := f.rewards.ListTransactions(context.Background(), nil, f.userID, 10)
	if len(txns) != 2 {
		t.Fatalf("ledger entries=%d, want 2", len(txns))
	}
	for _, txn := range txns {
		if txn.TripID != nil {
			t.Fatalf("ledger entry still references deleted trip %s", *txn.TripID)
		}
	}
}

func TestDeleteRangeKeepsOtherTrips(t *testing.T) {
	f := newPrivacyFixture(t)
	early := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	late := time.Date(2026, 6, 20, 8, 0, 0, 0, time.UTC)
	keep := basePayload(uuid.New(), uuid.New(), early, 600, 3200)
	drop := basePayload(uuid.New(), uuid.New(), late, 600, 2100)
	for _, p := range []tripPayload{keep, drop} {
		if got := f.syncOne(t, p); len(got.Synced) != 1 {
			t.Fatalf("seed sync failed: %+v", got.Failed)
		}
	}

	from := late.Add(-24 * time.Hour)
	to := late.Add(24 * time.Hour)
	deletion, err := f.privacy.Delete(context.Background(), f.userID, DeleteRequest{
		ConfirmationToken: f.privacy.DeletionToken(f.userID),
		RangeStart:        &from,
		RangeEnd:          &to,
	})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deletion.TripCount != 1 {
		t.Fatalf("ranged deletion removed %d trips, want 1", deletion.TripCount)
	}
	if trip, _ := f.trips.GetByID(context.Background(), nil, keep.TripID); trip == nil {
		t.Fatalf("trip outside range was deleted")
	}
	if trip, _ := f.trips.GetByID(context.Background(), nil, drop.TripID); trip != nil {
		t.Fatalf("trip inside range survived")
	}
}

func TestPurgeExpiredExports(t *testing.T) {
	f := newPrivacyFixture(t)
	start := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	if got := f.syncOne(t, basePayload(uuid.New(), uuid.New(), start, 600, 3200)); len(got.Synced) != 1 {
		t.Fatalf("seed sync failed: %+v", got.Failed)
	}
	export, err := f.privacy.Export(context.Background(), f.userID, ExportRequest{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	// Force expiry.
	if err := f.db.Model(&types.DataExport{}).Where("id = ?", export.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error; err != nil {
		t.Fatalf("expire row: %v", err)
	}

	purged, err := f.privacy.PurgeExpiredExports(context.Background(), 10)
	if err != nil {
		t.Fatalf("PurgeExpiredExports: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged=%d, want 1", purged)
	}
	if _, ok := f.bucket.objects[export.BucketKey]; ok {
		t.Fatalf("expired archive object survived purge")
	}
	if row, _ := f.audits.GetExportByID(context.Background(), nil, export.ID); row != nil {
		t.Fatalf("expired export row survived purge")
	}
}
