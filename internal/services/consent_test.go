package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/commutrace/tripsync-backend/internal/pkg/errors"
	"github.com/commutrace/tripsync-backend/internal/repos"
	"github.com/commutrace/tripsync-backend/internal/types"
)

func newConsentFixture(t *testing.T) (ConsentService, uuid.UUID) {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger(t)
	userRepo := repos.NewUserRepo(db, log)
	userID := uuid.New()
	if _, err := userRepo.Create(context.Background(), nil, &types.User{ID: userID, Pseudonym: "consenter-" + userID.String()[:8]}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewConsentService(db, log, repos.NewConsentRepo(db, log)), userID
}

func TestConsentRecordAndLatest(t *testing.T) {
	svc, userID := newConsentFixture(t)
	ctx := context.Background()

	if _, err := svc.Record(ctx, userID, "v1", true, false); err != nil {
		t.Fatalf("Record v1: %v", err)
	}
	if _, err := svc.Record(ctx, userID, "v2", false, true); err != nil {
		t.Fatalf("Record v2: %v", err)
	}

	latest, err := svc.Latest(ctx, userID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ConsentVersion != "v2" || latest.DataSharingConsent {
		t.Fatalf("latest=%+v, want v2 with sharing withdrawn", latest)
	}
	records, err := svc.List(ctx, userID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
}

func TestConsentVersionIsWriteOnce(t *testing.T) {
	svc, userID := newConsentFixture(t)
	ctx := context.Background()

	first, err := svc.Record(ctx, userID, "v1", true, true)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	// Identical replay is fine.
	replay, err := svc.Record(ctx, userID, "v1", true, true)
	if err != nil {
		t.Fatalf("identical replay rejected: %v", err)
	}
	if replay.ID != first.ID {
		t.Fatalf("replay created a second row")
	}
	// Different choices under the same version are not.
	if _, err := svc.Record(ctx, userID, "v1", false, true); !errors.Is(err, pkgerrors.ErrConflict) {
		t.Fatalf("conflicting rewrite error=%v, want conflict", err)
	}
}

func TestConsentRequiresVersion(t *testing.T) {
	svc, userID := newConsentFixture(t)
	if _, err := svc.Record(context.Background(), userID, "", true, true); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("missing version error=%v, want invalid argument", err)
	}
}
