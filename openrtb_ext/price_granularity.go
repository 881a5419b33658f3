package openrtb_ext

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prebid/auction-orchestrator/util/ptrutil"
)

const (
	// DefaultPriceGranularityPrecision applies whenever a granularity leaves precision unset.
	DefaultPriceGranularityPrecision = 2
	// MaxPriceGranularityPrecision is the largest number of decimal places accepted.
	MaxPriceGranularityPrecision = 15
)

// PriceGranularity defines the allowed values for bidrequest.ext.prebid.targeting.pricegranularity
// or bidrequest.ext.prebid.targeting.mediatypepricegranularity.banner|video|native
type PriceGranularity struct {
	Precision *int               `json:"precision,omitempty"`
	Ranges    []GranularityRange `json:"ranges,omitempty"`
}

// GranularityRange struct defines a range of prices used by PriceGranularity
type GranularityRange struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Increment float64 `json:"increment"`
}

// UnmarshalJSON accepts either a preset name or an explicit table. An explicit table
// gets its missing minimums filled in from the previous range's max.
func (pg *PriceGranularity) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		preset, ok := NewPriceGranularityFromLegacyID(name)
		if !ok {
			return fmt.Errorf("Price granularity error: invalid granularity %q", name)
		}
		*pg = preset
		return nil
	}

	type pgAlias PriceGranularity
	var table pgAlias
	if err := json.Unmarshal(b, &table); err != nil {
		return err
	}
	if table.Precision == nil {
		table.Precision = ptrutil.ToPtr(DefaultPriceGranularityPrecision)
	}
	prevMax := 0.0
	for i := range table.Ranges {
		table.Ranges[i].Min = prevMax
		prevMax = table.Ranges[i].Max
	}
	*pg = PriceGranularity(table)
	return nil
}

// Validate checks that precision is sane and that the ranges climb with positive increments.
func (pg PriceGranularity) Validate() error {
	if pg.Precision == nil {
		return errors.New("Price granularity error: precision is required")
	}
	if *pg.Precision < 0 {
		return errors.New("Price granularity error: precision must be non-negative")
	}
	if *pg.Precision > MaxPriceGranularityPrecision {
		return fmt.Errorf("Price granularity error: precision of more than %d significant figures is not supported", MaxPriceGranularityPrecision)
	}
	if len(pg.Ranges) == 0 {
		return errors.New("Price granularity error: empty granularity definition supplied")
	}

	var prevMax float64
	for _, gr := range pg.Ranges {
		if gr.Max <= prevMax {
			return errors.New("Price granularity error: range list must be ordered with increasing \"max\"")
		}
		if gr.Increment <= 0.0 {
			return errors.New("Price granularity error: increment must be a nonzero positive number")
		}
		prevMax = gr.Max
	}
	return nil
}

// NewPriceGranularityDefault returns the medium table, used when targeting names no granularity.
func NewPriceGranularityDefault() PriceGranularity {
	pg, _ := NewPriceGranularityFromLegacyID("medium")
	return pg
}

// NewPriceGranularityFromLegacyID converts a preset name into its bucket table. The bool is
// false for names outside the preset vocabulary.
func NewPriceGranularityFromLegacyID(v string) (PriceGranularity, bool) {
	precision2 := ptrutil.ToPtr(DefaultPriceGranularityPrecision)

	switch v {
	case "low":
		return PriceGranularity{
			Precision: precision2,
			Ranges: []GranularityRange{{
				Min:       0,
				Max:       5,
				Increment: 0.5}},
		}, true

	case "med", "medium":
		return PriceGranularity{
			Precision: precision2,
			Ranges: []GranularityRange{{
				Min:       0,
				Max:       20,
				Increment: 0.1}},
		}, true

	case "high":
		return PriceGranularity{
			Precision: precision2,
			Ranges: []GranularityRange{{
				Min:       0,
				Max:       20,
				Increment: 0.01}},
		}, true

	case "auto":
		return PriceGranularity{
			Precision: precision2,
			Ranges: []GranularityRange{
				{
					Min:       0,
					Max:       5,
					Increment: 0.05,
				},
				{
					Min:       5,
					Max:       10,
					Increment: 0.1,
				},
				{
					Min:       10,
					Max:       20,
					Increment: 0.5,
				},
			},
		}, true

	case "dense":
		return PriceGranularity{
			Precision: precision2,
			Ranges: []GranularityRange{
				{
					Min:       0,
					Max:       3,
					Increment: 0.01,
				},
				{
					Min:       3,
					Max:       8,
					Increment: 0.05,
				},
				{
					Min:       8,
					Max:       20,
					Increment: 0.5,
				},
			},
		}, true
	}

	return PriceGranularity{}, false
}

// PriceRoundingMode selects how a price is snapped onto its bucket increment.
type PriceRoundingMode string

const (
	RoundingModeFloor       PriceRoundingMode = "floor"
	RoundingModeCeil        PriceRoundingMode = "ceil"
	RoundingModeRoundHalfUp PriceRoundingMode = "roundhalfup"
	RoundingModeRandom      PriceRoundingMode = "random"
)

// ParsePriceRoundingMode maps a configured name onto a rounding mode. Empty means floor.
func ParsePriceRoundingMode(v string) (PriceRoundingMode, error) {
	switch PriceRoundingMode(v) {
	case "", RoundingModeFloor:
		return RoundingModeFloor, nil
	case RoundingModeCeil, RoundingModeRoundHalfUp, RoundingModeRandom:
		return PriceRoundingMode(v), nil
	}
	return "", fmt.Errorf("unknown price rounding mode %q", v)
}
