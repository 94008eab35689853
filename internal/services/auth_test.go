package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/commutrace/tripsync-backend/internal/requestdata"
)

func TestTokenRoundTripCarriesIdentity(t *testing.T) {
	log := newTestLogger(t)
	svc := NewAuthService(log, []byte("secret-a"))

	userID := uuid.New()
	token, err := svc.GenerateToken(userID, "device-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	ctx, err := svc.SetContextFromToken(context.Background(), token)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		t.Fatalf("no request data in context")
	}
	if rd.UserID != userID || rd.DeviceID != "device-1" {
		t.Fatalf("request data user=%s device=%s, want %s/device-1", rd.UserID, rd.DeviceID, userID)
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	log := newTestLogger(t)
	svc := NewAuthService(log, []byte("secret-a"))

	token, err := svc.GenerateToken(uuid.New(), "device-1", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := svc.SetContextFromToken(context.Background(), token); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestTokenSignedWithOtherSecretIsRejected(t *testing.T) {
	log := newTestLogger(t)
	minted, err := NewAuthService(log, []byte("secret-a")).GenerateToken(uuid.New(), "device-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := NewAuthService(log, []byte("secret-b")).SetContextFromToken(context.Background(), minted); err == nil {
		t.Fatalf("token minted under another secret accepted")
	}
}
