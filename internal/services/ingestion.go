package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/commutrace/tripsync-backend/internal/logger"
	"github.com/commutrace/tripsync-backend/internal/repos"
	"github.com/commutrace/tripsync-backend/internal/sealing"
	"github.com/commutrace/tripsync-backend/internal/types"
)

// TripSubmission is one item of a sync batch as it arrives on the wire.
type TripSubmission struct {
	TripID        uuid.UUID `json:"trip_id"`
	EncryptedData []byte    `json:"encrypted_data"`
	Signature     string    `json:"signature"`
}

// tripPayload is the decrypted client-side trip document.
type tripPayload struct {
	TripID            uuid.UUID       `json:"trip_id"`
	TripNumber        int             `json:"trip_number"`
	ChainID           uuid.UUID       `json:"chain_id"`
	OriginLat         float64         `json:"origin_lat"`
	OriginLon         float64         `json:"origin_lon"`
	OriginName        string          `json:"origin_name"`
	DestinationLat    float64         `json:"destination_lat"`
	DestinationLon    float64         `json:"destination_lon"`
	DestinationName   string          `json:"destination_name"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	DurationSeconds   int64           `json:"duration_seconds"`
	DistanceMeters    float64         `json:"distance_meters"`
	DetectedMode      string          `json:"detected_mode"`
	UserConfirmedMode *string         `json:"user_confirmed_mode,omitempty"`
	ModeConfidence    float64         `json:"mode_confidence"`
	TripPurpose       string          `json:"trip_purpose"`
	Companions        json.RawMessage `json:"companions,omitempty"`
	SensorSummary     json.RawMessage `json:"sensor_summary,omitempty"`
	Notes             string          `json:"notes"`
	RecordedOffline   bool            `json:"recorded_offline"`
	IsPrivate         bool            `json:"is_private"`
	PlausibilityScore *float64        `json:"plausibility_score,omitempty"`
}

// Judgment is the per-item outcome of verification. Either Trip is set and
// the item proceeds to reconciliation, or Err carries the reason code.
type Judgment struct {
	TripID uuid.UUID
	Trip   *types.Trip
	Err    *ItemError
}

type IngestionService interface {
	// VerifyBatch authenticates and validates every item of a batch. A bad
	// signature, failed decryption or malformed payload rejects only that
	// item; the rest of the batch proceeds.
	VerifyBatch(ctx context.Context, tx *gorm.DB, userID uuid.UUID, deviceID string, items []TripSubmission) ([]Judgment, error)
}

type ingestionService struct {
	db      *gorm.DB
	log     *logger.Logger
	devices repos.DeviceKeyRepo
}

func NewIngestionService(db *gorm.DB, baseLog *logger.Logger, devices repos.DeviceKeyRepo) IngestionService {
	return &ingestionService{
		db:      db,
		log:     baseLog.With("service", "IngestionService"),
		devices: devices,
	}
}

func (s *ingestionService) VerifyBatch(ctx context.Context, tx *gorm.DB, userID uuid.UUID, deviceID string, items []TripSubmission) ([]Judgment, error) {
	key, err := s.devices.GetByDeviceID(ctx, tx, deviceID)
	if err != nil {
		return nil, err
	}
	out := make([]Judgment, 0, len(items))
	for i := range items {
		item := items[i]
		j := Judgment{TripID: item.TripID}
		switch {
		case item.TripID == uuid.Nil:
			j.Err = NewItemError(CodeValidationError, "missing trip_id")
		case key == nil || key.UserID != userID:
			j.Err = NewItemError(CodeEncryptionError, "unknown device key")
		case !sealing.Verify(key.KeyMaterial, item.EncryptedData, item.Signature):
			j.Err = NewItemError(CodeEncryptionError, "signature mismatch")
		default:
			trip, itemErr := s.decode(userID, item, key.KeyMaterial)
			j.Trip = trip
			j.Err = itemErr
		}
		if j.Err != nil {
			s.log.Debug("Trip submission rejected", "trip_id", item.TripID, "code", j.Err.Code, "reason", j.Err.Message)
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *ingestionService) decode(userID uuid.UUID, item TripSubmission, keyMaterial []byte) (*types.Trip, *ItemError) {
	plaintext, err := sealing.Open(keyMaterial, item.EncryptedData)
	if err != nil {
		return nil, NewItemError(CodeEncryptionError, "payload decryption failed")
	}
	var payload tripPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, NewItemError(CodeValidationError, "malformed trip payload")
	}
	if itemErr := validatePayload(item.TripID, &payload); itemErr != nil {
		return nil, itemErr
	}
	trip := &types.Trip{
		ID:                payload.TripID,
		UserID:            userID,
		TripNumber:        payload.TripNumber,
		ChainID:           payload.ChainID,
		OriginLat:         payload.OriginLat,
		OriginLon:         payload.OriginLon,
		OriginName:        payload.OriginName,
		DestinationLat:    payload.DestinationLat,
		DestinationLon:    payload.DestinationLon,
		DestinationName:   payload.DestinationName,
		StartTime:         payload.StartTime.UTC(),
		EndTime:           payload.EndTime.UTC(),
		DurationSeconds:   payload.DurationSeconds,
		DistanceMeters:    payload.DistanceMeters,
		DetectedMode:      payload.DetectedMode,
		UserConfirmedMode: payload.UserConfirmedMode,
		ModeConfidence:    payload.ModeConfidence,
		TripPurpose:       payload.TripPurpose,
		Companions:        datatypes.JSON(payload.Companions),
		SensorSummary:     datatypes.JSON(payload.SensorSummary),
		Notes:             payload.Notes,
		RecordedOffline:   payload.RecordedOffline,
		IsPrivate:         payload.IsPrivate,
		PlausibilityScore: payload.PlausibilityScore,
		PayloadHash:       sealing.Digest(plaintext),
	}
	return trip, nil
}

func validatePayload(submittedID uuid.UUID, p *tripPayload) *ItemError {
	if p.TripID == uuid.Nil {
		return NewItemError(CodeValidationError, "payload missing trip_id")
	}
	if p.TripID != submittedID {
		return NewItemError(CodeValidationError, "payload trip_id does not match submission")
	}
	if p.ChainID == uuid.Nil {
		return NewItemError(CodeValidationError, "missing chain_id")
	}
	if p.StartTime.IsZero() || p.EndTime.IsZero() {
		return NewItemError(CodeValidationError, "missing start_time or end_time")
	}
	if !p.EndTime.After(p.StartTime) {
		return NewItemError(CodeValidationError, "end_time must be after start_time")
	}
	if want := int64(p.EndTime.Sub(p.StartTime) / time.Second); p.DurationSeconds != want {
		return NewItemError(CodeValidationError, "duration_seconds %d does not match time window %d", p.DurationSeconds, want)
	}
	if p.DistanceMeters < 0 {
		return NewItemError(CodeValidationError, "distance_meters must be non-negative")
	}
	if p.DetectedMode == "" {
		return NewItemError(CodeValidationError, "missing detected_mode")
	}
	if p.ModeConfidence < 0 || p.ModeConfidence > 1 {
		return NewItemError(CodeValidationError, "mode_confidence out of range [0,1]")
	}
	if p.PlausibilityScore != nil && (*p.PlausibilityScore < 0 || *p.PlausibilityScore > 100) {
		return NewItemError(CodeValidationError, "plausibility_score out of range [0,100]")
	}
	return nil
}
