package config

import (
	"fmt"
	"strings"

	validator "github.com/asaskevich/govalidator"
)

// Cache locates the prebid cache server used to store winning creatives.
type Cache struct {
	Scheme string `mapstructure:"scheme"`
	Host   string `mapstructure:"host"`
	Query  string `mapstructure:"query"`

	// ExpectedTimeMillis is the number of milliseconds the auction sets aside for caching.
	ExpectedTimeMillis int `mapstructure:"expected_millis"`
}

func (cfg *Cache) validate(errs []error) []error {
	if cfg.Host == "" {
		return errs
	}
	if strings.Contains(cfg.Host, "/") {
		errs = append(errs, fmt.Errorf("cache.host must not contain a path. Got %s", cfg.Host))
	}
	if !validator.IsURL("http://" + cfg.Host) {
		errs = append(errs, fmt.Errorf("cache host %s does not form a valid URL", cfg.Host))
	}
	return errs
}

// GetBaseURL allows for protocol relative URL if scheme is empty
func (cfg *Cache) GetBaseURL() string {
	scheme := strings.ToLower(cfg.Scheme)
	if strings.Contains(scheme, "https") {
		return fmt.Sprintf("https://%s", cfg.Host)
	}
	if strings.Contains(scheme, "http") {
		return fmt.Sprintf("http://%s", cfg.Host)
	}
	return fmt.Sprintf("//%s", cfg.Host)
}

// GetCachedAssetURL returns the URL a client fetches a cached creative from.
func (cfg *Cache) GetCachedAssetURL(uuid string) string {
	return fmt.Sprintf("%s/cache?%s", cfg.GetBaseURL(), strings.Replace(cfg.Query, "%PBS_CACHE_UUID%", uuid, 1))
}
