// Package igdb looks up canonical game metadata on the IGDB API. The tracker
// uses IGDB ids as its canonical, storefront-agnostic game ids.
package igdb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/media-tracker/internal/domain"
	"github.com/tbourn/media-tracker/internal/resilience"
)

const gameFields = "fields name,cover.url,summary,rating,platforms.name,involved_companies.company.name;"

// Config configures a Client.
type Config struct {
	BaseURL  string // e.g. https://api.igdb.com/v4
	ClientID string
	Token    string // bearer token
	Timeout  time.Duration
}

// Client queries IGDB. Calls go through an optional circuit breaker.
type Client struct {
	cfg  Config
	http *http.Client
	cb   *resilience.Breaker
}

// New returns a Client. A nil httpClient gets a default with cfg.Timeout; a
// nil breaker disables circuit breaking.
func New(cfg Config, httpClient *http.Client, cb *resilience.Breaker) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient, cb: cb}
}

type named struct {
	Name string `json:"name"`
}

type gameResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Cover *struct {
		URL string `json:"url"`
	} `json:"cover"`
	Summary           string   `json:"summary"`
	Rating            *float64 `json:"rating"`
	Platforms         []named  `json:"platforms"`
	InvolvedCompanies []struct {
		Company named `json:"company"`
	} `json:"involved_companies"`
}

// GetByID returns metadata for a canonical game id, or nil when IGDB does
// not know the id.
func (c *Client) GetByID(ctx context.Context, id int64) (*domain.Game, error) {
	ctx, span := otel.Tracer("igdb").Start(ctx, "GetByID",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int64("game.id", id)),
	)
	defer span.End()

	call := func() (*domain.Game, error) { return c.fetch(ctx, id) }
	var (
		g   *domain.Game
		err error
	)
	if c.cb != nil {
		g, err = resilience.Do(ctx, c.cb, call)
	} else {
		g, err = call()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "igdb lookup failed")
		return nil, err
	}
	span.SetAttributes(attribute.Bool("game.found", g != nil))
	return g, nil
}

func (c *Client) fetch(ctx context.Context, id int64) (*domain.Game, error) {
	body := fmt.Sprintf("%s where id = %d; limit 1;", gameFields, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/games", strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("igdb: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Client-ID", c.cfg.ClientID)
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("igdb: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("igdb: unexpected status %d", resp.StatusCode)
	}

	var out []gameResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("igdb: decode response: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return toGame(id, out[0]), nil
}

func toGame(id int64, r gameResponse) *domain.Game {
	g := &domain.Game{
		ID:        id,
		Title:     r.Name,
		Summary:   r.Summary,
		Rating:    r.Rating,
		Platforms: make([]string, 0, len(r.Platforms)),
		Companies: make([]string, 0, len(r.InvolvedCompanies)),
	}
	if r.Cover != nil && r.Cover.URL != "" {
		u := r.Cover.URL
		if strings.HasPrefix(u, "//") {
			u = "https:" + u
		}
		g.CoverURL = u
	}
	for _, p := range r.Platforms {
		if p.Name != "" {
			g.Platforms = append(g.Platforms, p.Name)
		}
	}
	for _, ic := range r.InvolvedCompanies {
		if ic.Company.Name != "" {
			g.Companies = append(g.Companies, ic.Company.Name)
		}
	}
	return g
}
