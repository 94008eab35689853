// Package anonymize maps raw trips onto spatial zones and time bins and
// enforces the minimum-group-size rule. Everything here is pure: the job
// pipeline feeds trips in and persists whatever survives suppression.
package anonymize

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gorm.io/datatypes"

	"github.com/commutrace/tripsync-backend/internal/types"
)

// Params is the resolved binning configuration for one job run.
type Params struct {
	// ZoneCellDegrees is the grid cell edge used to map coordinates to
	// zone ids.
	ZoneCellDegrees float64
	// BinMinutes is the effective time-bin size after the level multiplier.
	BinMinutes int
	// AllowedZones restricts output to the requested aggregation zones.
	// Empty means no restriction.
	AllowedZones map[string]bool
}

// ZoneFor maps a coordinate to its enclosing grid zone id. Zone ids carry no
// precision beyond the cell index, so they cannot be inverted to a point.
func ZoneFor(lat, lon, cellDegrees float64) string {
	if cellDegrees <= 0 {
		cellDegrees = 0.01
	}
	latIdx := int(math.Floor(lat / cellDegrees))
	lonIdx := int(math.Floor(lon / cellDegrees))
	return fmt.Sprintf("z%d:%d", latIdx, lonIdx)
}

// BinStart truncates t down to the enclosing bin boundary.
func BinStart(t time.Time, binMinutes int) time.Time {
	if binMinutes <= 0 {
		binMinutes = 15
	}
	return t.UTC().Truncate(time.Duration(binMinutes) * time.Minute)
}

// GroupKey identifies one aggregate bucket.
type GroupKey struct {
	OriginZone      string
	DestinationZone string
	StartBin        time.Time
	EndBin          time.Time
	Mode            string
	Purpose         string
}

// Candidate is one trip after binning, before the k-anonymity gate.
type Candidate struct {
	Key             GroupKey
	DurationSeconds int64
	DistanceMeters  float64
	CompanionCount  int
	SensorSummary   datatypes.JSON
}

// FromTrip bins one trip. The second return is false when the trip falls
// outside the allowed zone set and must not contribute to any group.
func FromTrip(trip *types.Trip, p Params) (Candidate, bool) {
	origin := ZoneFor(trip.OriginLat, trip.OriginLon, p.ZoneCellDegrees)
	dest := ZoneFor(trip.DestinationLat, trip.DestinationLon, p.ZoneCellDegrees)
	if len(p.AllowedZones) > 0 && (!p.AllowedZones[origin] || !p.AllowedZones[dest]) {
		return Candidate{}, false
	}
	key := GroupKey{
		OriginZone:      origin,
		DestinationZone: dest,
		StartBin:        BinStart(trip.StartTime, p.BinMinutes),
		EndBin:          BinStart(trip.EndTime, p.BinMinutes),
		Mode:            trip.EffectiveMode(),
		Purpose:         trip.TripPurpose,
	}
	return Candidate{
		Key:             key,
		DurationSeconds: trip.DurationSeconds,
		DistanceMeters:  trip.DistanceMeters,
		CompanionCount:  companionCount(trip.Companions),
		SensorSummary:   trip.SensorSummary,
	}, true
}

// Group buckets candidates by their group key.
func Group(candidates []Candidate) map[GroupKey][]Candidate {
	groups := make(map[GroupKey][]Candidate)
	for _, c := range candidates {
		groups[c.Key] = append(groups[c.Key], c)
	}
	return groups
}

// Suppress drops every group smaller than k. Suppressed groups vanish
// entirely; they are never partially emitted. Returns the surviving groups
// plus how many groups and member trips were suppressed.
func Suppress(groups map[GroupKey][]Candidate, k int) (map[GroupKey][]Candidate, int, int) {
	if k < 1 {
		k = 1
	}
	kept := make(map[GroupKey][]Candidate, len(groups))
	suppressedGroups := 0
	suppressedTrips := 0
	for key, members := range groups {
		if len(members) < k {
			suppressedGroups++
			suppressedTrips += len(members)
			continue
		}
		kept[key] = members
	}
	return kept, suppressedGroups, suppressedTrips
}

func companionCount(raw datatypes.JSON) int {
	if len(raw) == 0 {
		return 0
	}
	var companions []json.RawMessage
	if err := json.Unmarshal(raw, &companions); err != nil {
		return 0
	}
	return len(companions)
}
