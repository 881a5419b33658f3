package config

import (
	"fmt"

	validator "github.com/asaskevich/govalidator"
)

// Adapter configures the transport to one bidder.
type Adapter struct {
	Endpoint string `mapstructure:"endpoint"` // Required
	Disabled bool   `mapstructure:"disabled"`
	// BidAdjustment scales every price of this bidder unless the request sets its own factor.
	BidAdjustment float64 `mapstructure:"bid_adjustment"`
	// Aliases lists other names under which requests may invite this bidder.
	Aliases []string `mapstructure:"aliases"`
}

// validateAdapters validates adapter's endpoint
func validateAdapters(adapterMap map[string]Adapter, errs []error) []error {
	for adapterName, adapter := range adapterMap {
		if !adapter.Disabled {
			// Verify that every adapter has a valid endpoint associated with it
			errs = validateAdapterEndpoint(adapter.Endpoint, adapterName, errs)
		}
		if adapter.BidAdjustment < 0 {
			errs = append(errs, fmt.Errorf("adapters.%s.bid_adjustment must be >= 0. Got %f", adapterName, adapter.BidAdjustment))
		}
	}
	return errs
}

// validateAdapterEndpoint makes sure that an adapter has a valid endpoint
// associated with it
func validateAdapterEndpoint(endpoint string, adapterName string, errs []error) []error {
	if endpoint == "" {
		return append(errs, fmt.Errorf("There's no default endpoint available for %s. Calls to this bidder/exchange will fail. "+
			"Please set adapters.%s.endpoint in your app config", adapterName, adapterName))
	}

	// IsURL allows relative paths, IsRequestURL requires an absolute one. Neither is enough alone:
	// IsURL will allow "abcd.com" but IsRequestURL won't, and
	// IsRequestURL will allow "http://http://abcd.com" but IsURL won't.
	if !validator.IsURL(endpoint) || !validator.IsRequestURL(endpoint) {
		errs = append(errs, fmt.Errorf("The endpoint: %s for %s is not a valid URL", endpoint, adapterName))
	}
	return errs
}
