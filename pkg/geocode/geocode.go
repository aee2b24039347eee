// Package geocode maps GPS coordinates to display place names through a
// persistent, rate-limited cache. The actual lookup service is an injected
// collaborator; this package owns caching, throttling and formatting.
package geocode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/lucvincent/photoloop/util/log"
)

// CacheFile is the geocode cache file name inside the cache directory.
const CacheFile = "geocode_cache.json"

// Place is a resolved address, already reduced to the components the
// formatter needs.
type Place struct {
	City        string
	State       string
	Country     string
	CountryCode string
}

// Resolver performs one reverse lookup against the external service.
// A nil place with nil error means the coordinates resolve to nothing.
type Resolver interface {
	Reverse(ctx context.Context, lat, lon float64) (*Place, error)
}

// Service is the process-wide geocoder: one instance, its own mutex, its
// own persistent cache file. Lookups are limited to one per second;
// negative results are cached so they are never retried.
type Service struct {
	mu       sync.Mutex
	cache    map[string]*string
	path     string
	resolver Resolver
	limiter  *rate.Limiter

	newSinceSave int
}

// NewService loads the cache from cacheDir and wraps the given resolver.
func NewService(cacheDir string, resolver Resolver) *Service {
	s := &Service{
		cache:    make(map[string]*string),
		path:     filepath.Join(cacheDir, CacheFile),
		resolver: resolver,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
	}
	data, err := os.ReadFile(s.path)
	if err == nil {
		if err := json.Unmarshal(data, &s.cache); err != nil {
			log.Printf("Failed to load geocode cache: %v", err)
			s.cache = make(map[string]*string)
		} else {
			log.Printf("Loaded %d cached geocode results", len(s.cache))
		}
	}
	return s
}

// cacheKey rounds to three decimal places, about 100 m, so nearby photos
// share one lookup.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.3f,%.3f", lat, lon)
}

// Reverse resolves coordinates to a place name. ok is false when the
// lookup failed or resolved to nothing; that outcome is cached too.
func (s *Service) Reverse(lat, lon float64) (string, bool) {
	key := cacheKey(lat, lon)

	s.mu.Lock()
	if cached, hit := s.cache[key]; hit {
		s.mu.Unlock()
		if cached == nil {
			return "", false
		}
		return *cached, true
	}
	s.mu.Unlock()

	if s.resolver == nil {
		return "", false
	}

	// The upstream service allows at most one request per second.
	if err := s.limiter.Wait(context.Background()); err != nil {
		return "", false
	}

	place, err := s.resolver.Reverse(context.Background(), lat, lon)
	if err != nil {
		log.Debugf("Reverse geocoding failed for %s: %v", key, err)
		s.put(key, nil)
		return "", false
	}

	var result *string
	if place != nil {
		if formatted := FormatPlace(*place); formatted != "" {
			result = &formatted
		}
	}
	s.put(key, result)
	if result == nil {
		return "", false
	}
	return *result, true
}

func (s *Service) put(key string, value *string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = value
	s.newSinceSave++
	if s.newSinceSave >= 10 {
		s.saveLocked()
		s.newSinceSave = 0
	}
}

func (s *Service) saveLocked() {
	data, err := json.Marshal(s.cache)
	if err != nil {
		log.Printf("Failed to encode geocode cache: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		log.Printf("Failed to save geocode cache: %v", err)
	}
}

// Close persists the cache on orderly shutdown.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveLocked()
}

// FormatPlace renders a resolved address: US results as "City, ST" with
// the two-letter state, everything else as "City, Country".
func FormatPlace(p Place) string {
	switch {
	case p.CountryCode == "US" && p.City != "" && p.State != "":
		return p.City + ", " + usStateAbbrev(p.State)
	case p.City != "" && p.Country != "":
		return p.City + ", " + p.Country
	case p.City != "":
		return p.City
	case p.Country != "":
		return p.Country
	default:
		return ""
	}
}

var usStates = map[string]string{
	"Alabama": "AL", "Alaska": "AK", "Arizona": "AZ", "Arkansas": "AR",
	"California": "CA", "Colorado": "CO", "Connecticut": "CT", "Delaware": "DE",
	"Florida": "FL", "Georgia": "GA", "Hawaii": "HI", "Idaho": "ID",
	"Illinois": "IL", "Indiana": "IN", "Iowa": "IA", "Kansas": "KS",
	"Kentucky": "KY", "Louisiana": "LA", "Maine": "ME", "Maryland": "MD",
	"Massachusetts": "MA", "Michigan": "MI", "Minnesota": "MN", "Mississippi": "MS",
	"Missouri": "MO", "Montana": "MT", "Nebraska": "NE", "Nevada": "NV",
	"New Hampshire": "NH", "New Jersey": "NJ", "New Mexico": "NM", "New York": "NY",
	"North Carolina": "NC", "North Dakota": "ND", "Ohio": "OH", "Oklahoma": "OK",
	"Oregon": "OR", "Pennsylvania": "PA", "Rhode Island": "RI", "South Carolina": "SC",
	"South Dakota": "SD", "Tennessee": "TN", "Texas": "TX", "Utah": "UT",
	"Vermont": "VT", "Virginia": "VA", "Washington": "WA", "West Virginia": "WV",
	"Wisconsin": "WI", "Wyoming": "WY", "District of Columbia": "DC",
}

func usStateAbbrev(state string) string {
	if abbrev, ok := usStates[state]; ok {
		return abbrev
	}
	return state
}
