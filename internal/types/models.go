package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
)

type VehicleType string

const (
	VehicleEconomy VehicleType = "Economy"
	VehiclePremium VehicleType = "Premium"
)

type TimeOfBooking string

const (
	BookingMorning   TimeOfBooking = "Morning"
	BookingAfternoon TimeOfBooking = "Afternoon"
	BookingEvening   TimeOfBooking = "Evening"
	BookingNight     TimeOfBooking = "Night"
)

type LocationCategory string

const (
	LocationUrban    LocationCategory = "Urban"
	LocationSuburban LocationCategory = "Suburban"
	LocationRural    LocationCategory = "Rural"
)

type LoyaltyStatus string

const (
	LoyaltyRegular LoyaltyStatus = "Regular"
	LoyaltySilver  LoyaltyStatus = "Silver"
	LoyaltyGold    LoyaltyStatus = "Gold"
)

var (
	VehicleTypes       = []VehicleType{VehicleEconomy, VehiclePremium}
	TimesOfBooking     = []TimeOfBooking{BookingMorning, BookingAfternoon, BookingEvening, BookingNight}
	LocationCategories = []LocationCategory{LocationUrban, LocationSuburban, LocationRural}
	LoyaltyStatuses    = []LoyaltyStatus{LoyaltyRegular, LoyaltySilver, LoyaltyGold}
)

// RideRecord is the request payload for a single recommendation.
// JSON names match what the engine expects, including the lower-case competitor_price.
type RideRecord struct {
	HistoricalCostOfRide  float64          `json:"Historical_Cost_of_Ride"`
	ExpectedRideDuration  float64          `json:"Expected_Ride_Duration"`
	NumberOfRiders        int              `json:"Number_of_Riders"`
	NumberOfDrivers       int              `json:"Number_of_Drivers"`
	VehicleType           VehicleType      `json:"Vehicle_Type"`
	TimeOfBooking         TimeOfBooking    `json:"Time_of_Booking"`
	LocationCategory      LocationCategory `json:"Location_Category"`
	CustomerLoyaltyStatus LoyaltyStatus    `json:"Customer_Loyalty_Status"`
	CompetitorPrice       float64          `json:"competitor_price"`
}

// RideRecordFields lists the engine's column names in submission order.
var RideRecordFields = []string{
	"Historical_Cost_of_Ride",
	"Expected_Ride_Duration",
	"Number_of_Riders",
	"Number_of_Drivers",
	"Vehicle_Type",
	"Time_of_Booking",
	"Location_Category",
	"Customer_Loyalty_Status",
	"competitor_price",
}

// DefaultRideRecord is the preset the console starts from.
func DefaultRideRecord() RideRecord {
	return RideRecord{
		HistoricalCostOfRide:  250,
		ExpectedRideDuration:  35,
		NumberOfRiders:        120,
		NumberOfDrivers:       100,
		VehicleType:           VehicleEconomy,
		TimeOfBooking:         BookingEvening,
		LocationCategory:      LocationUrban,
		CustomerLoyaltyStatus: LoyaltySilver,
		CompetitorPrice:       360,
	}
}

// Validate reports every field that is missing, non-positive or outside its enum.
func (r RideRecord) Validate() error {
	var errs []error
	positive := func(name string, v float64) {
		if !(v > 0) {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, v))
		}
	}
	positive("Historical_Cost_of_Ride", r.HistoricalCostOfRide)
	positive("Expected_Ride_Duration", r.ExpectedRideDuration)
	positive("competitor_price", r.CompetitorPrice)
	if r.NumberOfRiders <= 0 {
		errs = append(errs, fmt.Errorf("Number_of_Riders must be a positive integer, got %d", r.NumberOfRiders))
	}
	if r.NumberOfDrivers <= 0 {
		errs = append(errs, fmt.Errorf("Number_of_Drivers must be a positive integer, got %d", r.NumberOfDrivers))
	}
	if !slices.Contains(VehicleTypes, r.VehicleType) {
		errs = append(errs, fmt.Errorf("Vehicle_Type %q not one of %v", r.VehicleType, VehicleTypes))
	}
	if !slices.Contains(TimesOfBooking, r.TimeOfBooking) {
		errs = append(errs, fmt.Errorf("Time_of_Booking %q not one of %v", r.TimeOfBooking, TimesOfBooking))
	}
	if !slices.Contains(LocationCategories, r.LocationCategory) {
		errs = append(errs, fmt.Errorf("Location_Category %q not one of %v", r.LocationCategory, LocationCategories))
	}
	if !slices.Contains(LoyaltyStatuses, r.CustomerLoyaltyStatus) {
		errs = append(errs, fmt.Errorf("Customer_Loyalty_Status %q not one of %v", r.CustomerLoyaltyStatus, LoyaltyStatuses))
	}
	return errors.Join(errs...)
}

// RecommendRequest wraps a record the way /recommend expects it.
type RecommendRequest struct {
	Record RideRecord `json:"record"`
}

type Bounds struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// RecommendationResult is the /recommend response. Values are passed through as received.
type RecommendationResult struct {
	PriceRecommended     float64 `json:"price_recommended"`
	PCompleteRecommended float64 `json:"p_complete_recommended"`
	GMPct                float64 `json:"gm_pct"`
	Bounds               Bounds  `json:"bounds"`
}

// MarshalJSON keeps results the engine sent with unreadable numbers encodable.
func (r RecommendationResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"price_recommended":      JSONNumber(r.PriceRecommended),
		"p_complete_recommended": JSONNumber(r.PCompleteRecommended),
		"gm_pct":                 JSONNumber(r.GMPct),
		"bounds": map[string]any{
			"low":  JSONNumber(r.Bounds.Low),
			"high": JSONNumber(r.Bounds.High),
		},
	})
}

// HealthStatus is the /health response. Extra keys the engine sends are kept in Details.
type HealthStatus struct {
	OK      bool           `json:"ok"`
	Details map[string]any `json:"details,omitempty"`
}

// KPIMap is a KPI snapshot. No key is guaranteed; render by iterating.
type KPIMap map[string]float64

// Names returns the metric names in sorted order.
func (k KPIMap) Names() []string {
	names := make([]string, 0, len(k))
	for name := range k {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// MarshalJSON writes values the engine sent as non-numbers as the string "NaN".
func (k KPIMap) MarshalJSON() ([]byte, error) {
	if k == nil {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(k))
	for name, v := range k {
		out[name] = JSONNumber(v)
	}
	return json.Marshal(out)
}

// JSONNumber returns v, or a string spelling of it when encoding/json would
// reject it.
func JSONNumber(v float64) any {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	default:
		return v
	}
}

// RawRow is one untrusted element of a batch response.
type RawRow = any

// BatchResponse is the decoded /recommend_batch body before normalization.
type BatchResponse struct {
	Rows []RawRow `json:"rows"`
	KPIs KPIMap   `json:"kpis"`
}
