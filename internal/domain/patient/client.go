package patient

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/platform/api"
	"github.com/careflow/careflow/internal/platform/cache"
)

// WriteKind is the resource kind declared to the cache for patient writes.
const WriteKind = "patient"

// DefaultSearchLimit bounds search result pages when the caller passes no
// limit.
const DefaultSearchLimit = 20

// CacheKey is the canonical cache key for one patient record.
func CacheKey(patientID string) string {
	return cache.Key("patient", patientID)
}

// PortfolioKey is the cache key for a patient's portfolio view.
func PortfolioKey(patientID string) string {
	return cache.Key("patient", "portfolio", patientID)
}

// Client performs patient registration, lookup, and profile edits.
type Client struct {
	api    *api.Client
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewClient wires the client and declares the cached views a patient write
// invalidates.
func NewClient(a *api.Client, c *cache.Cache, logger zerolog.Logger) *Client {
	c.DeclareDependents(WriteKind, func(id string) []string {
		return []string{
			cache.Key("patient", id),
			cache.Key("patient", "portfolio", id),
			cache.Key("patient", "search"),
		}
	})
	return &Client{api: a, cache: c, logger: logger}
}

// Create registers a new patient.
func (c *Client) Create(ctx context.Context, in Create) (*Patient, error) {
	if strings.TrimSpace(in.FullName) == "" {
		return nil, api.NewValidationError("full_name", "full name is required")
	}
	if strings.TrimSpace(in.NationalID) == "" {
		return nil, api.NewValidationError("national_id", "national id is required")
	}
	var p Patient
	if err := c.api.Post(ctx, "/patients", in, &p); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	c.cache.WriteResolved(WriteKind, p.PatientID)
	c.logger.Info().Str("patient_id", p.PatientID).Msg("patient registered")
	return &p, nil
}

// Search matches patients by name, id, or national id fragment. Results are
// cached per query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Patient, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	key := cache.Key("patient", "search", query, strconv.Itoa(limit))
	return cache.GetAs(ctx, c.cache, key, func(ctx context.Context) ([]Patient, error) {
		var out []Patient
		params := map[string]string{"q": query, "limit": strconv.Itoa(limit)}
		if err := c.api.Get(ctx, "/patients/search", params, &out); err != nil {
			return nil, fmt.Errorf("search patients: %w", err)
		}
		return out, nil
	})
}

// Get fetches one patient, served from cache when fresh.
func (c *Client) Get(ctx context.Context, patientID string) (*Patient, error) {
	return cache.GetAs(ctx, c.cache, CacheKey(patientID), func(ctx context.Context) (*Patient, error) {
		var p Patient
		if err := c.api.Get(ctx, "/patients/"+patientID, nil, &p); err != nil {
			return nil, fmt.Errorf("get patient %s: %w", patientID, err)
		}
		return &p, nil
	})
}

// Update edits the mutable profile fields.
func (c *Client) Update(ctx context.Context, patientID string, in Update) (*Patient, error) {
	var p Patient
	if err := c.api.Put(ctx, "/patients/"+patientID, in, &p); err != nil {
		return nil, fmt.Errorf("update patient %s: %w", patientID, err)
	}
	c.cache.WriteResolved(WriteKind, patientID)
	return &p, nil
}

// Portfolio fetches the patient's profile with their complete session
// history.
func (c *Client) Portfolio(ctx context.Context, patientID string) (*Portfolio, error) {
	return cache.GetAs(ctx, c.cache, PortfolioKey(patientID), func(ctx context.Context) (*Portfolio, error) {
		var pf Portfolio
		if err := c.api.Get(ctx, "/patients/"+patientID+"/portfolio", nil, &pf); err != nil {
			return nil, fmt.Errorf("get portfolio for %s: %w", patientID, err)
		}
		return &pf, nil
	})
}
