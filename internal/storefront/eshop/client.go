// Package eshop implements the Nintendo eShop storefront client.
//
// Title search goes to the eShop Solr search endpoint and the best candidate
// is picked with the search package's title matcher. Prices come from the
// eShop price API, which answers per country with a sales status and an
// optional discount.
package eshop

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/media-tracker/internal/search"
	"github.com/tbourn/media-tracker/internal/storefront"
)

// Config configures a Client.
type Config struct {
	SearchURL      string   // may contain {lang}
	PriceURL       string   // price API base
	ProductURL     string   // may contain {region}, {lang} and {id}
	Regions        []string // upper-case country codes
	Lang           string
	Timeout        time.Duration
	MatchThreshold float64
	SearchRows     int // candidates requested per search; default 10
}

// Client talks to the eShop over HTTP.
type Client struct {
	cfg     Config
	http    *http.Client
	matcher search.Matcher
}

var _ storefront.StoreClient = (*Client)(nil)

// New returns a Client. A nil httpClient gets a default with cfg.Timeout.
func New(cfg Config, httpClient *http.Client) *Client {
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if cfg.SearchRows <= 0 {
		cfg.SearchRows = 10
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		matcher: search.NewMatcher(search.WithThreshold(cfg.MatchThreshold)),
	}
}

// SupportedRegions returns the configured regions.
func (c *Client) SupportedRegions() []string {
	out := make([]string, len(c.cfg.Regions))
	copy(out, c.cfg.Regions)
	return out
}

// searchResponse is the subset of the Solr response the client reads.
type searchResponse struct {
	Response struct {
		NumFound int `json:"numFound"`
		Docs     []struct {
			Title  string   `json:"title"`
			NSUIDs []string `json:"nsuid_txt"`
		} `json:"docs"`
	} `json:"response"`
}

// SearchIdentifier searches title and returns the nsuid of the best match.
func (c *Client) SearchIdentifier(ctx context.Context, region, title string) (string, bool, error) {
	ctx, span := otel.Tracer("storefront/eshop").Start(ctx, "SearchIdentifier",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("store.region", region),
			attribute.String("game.title", title),
		),
	)
	defer span.End()

	if strings.TrimSpace(title) == "" {
		return "", false, nil
	}

	q := url.Values{}
	q.Set("q", title)
	q.Set("fq", `type:GAME AND system_type:nintendoswitch*`)
	q.Set("rows", strconv.Itoa(c.cfg.SearchRows))
	q.Set("start", "0")
	q.Set("wt", "json")
	endpoint := strings.ReplaceAll(c.cfg.SearchURL, "{lang}", c.cfg.Lang) + "?" + q.Encode()

	var out searchResponse
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		return "", false, err
	}

	cands := make([]search.Candidate, 0, len(out.Response.Docs))
	for _, d := range out.Response.Docs {
		if len(d.NSUIDs) == 0 || d.NSUIDs[0] == "" {
			continue
		}
		cands = append(cands, search.Candidate{ID: d.NSUIDs[0], Title: d.Title})
	}

	best, ok := c.matcher.Best(title, cands)
	if !ok {
		log.Debug().Str("region", region).Str("title", title).Int("candidates", len(cands)).Msg("eshop: no title match")
		return "", false, nil
	}
	span.SetAttributes(attribute.String("store.game_id", best.ID), attribute.Float64("match.score", best.Score))
	return best.ID, true, nil
}

type priceAmount struct {
	Currency      string `json:"currency"`
	RawValue      string `json:"raw_value"`
	StartDatetime string `json:"start_datetime"`
	EndDatetime   string `json:"end_datetime"`
}

type priceResponse struct {
	Country string `json:"country"`
	Prices  []struct {
		TitleID       json.Number  `json:"title_id"`
		SalesStatus   string       `json:"sales_status"`
		RegularPrice  *priceAmount `json:"regular_price"`
		DiscountPrice *priceAmount `json:"discount_price"`
	} `json:"prices"`
}

// Sales statuses the price API uses for titles that cannot be bought.
var unsellable = map[string]struct{}{
	"not_found":         {},
	"unreleased":        {},
	"sales_termination": {},
}

// GetPrice fetches the current price of nsuid in region.
func (c *Client) GetPrice(ctx context.Context, region, nsuid string) (*storefront.Price, error) {
	ctx, span := otel.Tracer("storefront/eshop").Start(ctx, "GetPrice",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("store.region", region),
			attribute.String("store.game_id", nsuid),
		),
	)
	defer span.End()

	q := url.Values{}
	q.Set("country", region)
	q.Set("lang", c.cfg.Lang)
	q.Set("ids", nsuid)
	endpoint := c.cfg.PriceURL + "?" + q.Encode()

	// Absence is read from sales_status only; a 404 means a wrong endpoint.
	var out priceResponse
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "price fetch failed")
		return nil, err
	}

	for _, p := range out.Prices {
		if p.TitleID.String() != nsuid {
			continue
		}
		if _, no := unsellable[p.SalesStatus]; no || p.RegularPrice == nil {
			return nil, nil
		}
		return c.toPrice(region, nsuid, p.RegularPrice, p.DiscountPrice)
	}
	return nil, nil
}

func (c *Client) toPrice(region, nsuid string, regular, discount *priceAmount) (*storefront.Price, error) {
	cur := regular
	onSale := false
	if discount != nil && discount.RawValue != "" {
		cur = discount
		onSale = true
	}
	amount, err := decimal.NewFromString(cur.RawValue)
	if err != nil {
		return nil, fmt.Errorf("eshop: bad price %q for %s/%s: %w", cur.RawValue, region, nsuid, err)
	}

	p := &storefront.Price{
		URL:      c.productURL(region, nsuid),
		Currency: strings.ToUpper(cur.Currency),
		Amount:   amount,
		OnSale:   onSale,
	}
	if onSale && discount.EndDatetime != "" {
		if t, err := time.Parse(time.RFC3339, discount.EndDatetime); err == nil {
			t = t.UTC()
			p.SaleEndsAt = &t
		}
	}
	return p, nil
}

func (c *Client) productURL(region, nsuid string) string {
	return strings.NewReplacer(
		"{region}", region,
		"{lang}", c.cfg.Lang,
		"{id}", url.PathEscape(nsuid),
	).Replace(c.cfg.ProductURL)
}

// getJSON issues a GET and decodes a 2xx JSON body into out. Any other
// status is an error.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("eshop: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("eshop: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("eshop: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("eshop: decode response: %w", err)
	}
	return nil
}
