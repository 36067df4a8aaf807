package igdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/media-tracker/internal/resilience"
)

func TestGetByID_MapsFieldsAndSendsQuery(t *testing.T) {
	var gotBody, gotClientID, gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotClientID = r.Header.Get("Client-ID")
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`[{"id":1942,"name":"The Witcher 3","cover":{"url":"//images.igdb.com/t_thumb/co1wyy.jpg"},
			"summary":"Geralt.","rating":93.1,
			"platforms":[{"name":"Nintendo Switch"},{"name":"PC"}],
			"involved_companies":[{"company":{"name":"CD Projekt RED"}}]}]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", ClientID: "cid", Token: "tok"}, srv.Client(), nil)
	g, err := c.GetByID(context.Background(), 1942)
	if err != nil || g == nil {
		t.Fatalf("GetByID = %v, %v", g, err)
	}
	if gotPath != "/games" || !strings.Contains(gotBody, "where id = 1942;") || !strings.HasPrefix(gotBody, "fields name,") {
		t.Fatalf("unexpected request path=%q body=%q", gotPath, gotBody)
	}
	if gotClientID != "cid" || gotAuth != "Bearer tok" {
		t.Fatalf("unexpected auth headers: %q %q", gotClientID, gotAuth)
	}
	if g.ID != 1942 || g.Title != "The Witcher 3" || g.CoverURL != "https://images.igdb.com/t_thumb/co1wyy.jpg" {
		t.Fatalf("unexpected game: %+v", g)
	}
	if g.Rating == nil || *g.Rating != 93.1 {
		t.Fatalf("unexpected rating: %v", g.Rating)
	}
	if !reflect.DeepEqual(g.Platforms, []string{"Nintendo Switch", "PC"}) || !reflect.DeepEqual(g.Companies, []string{"CD Projekt RED"}) {
		t.Fatalf("unexpected lists: %v %v", g.Platforms, g.Companies)
	}
}

func TestGetByID_EmptyResultIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, srv.Client(), nil)
	g, err := c.GetByID(context.Background(), 7)
	if g != nil || err != nil {
		t.Fatalf("expected absent, got %v %v", g, err)
	}
}

func TestGetByID_FaultsTripBreaker(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := resilience.New("igdb-test", resilience.Settings{MaxFailures: 1, OpenTimeout: time.Hour})
	c := New(Config{BaseURL: srv.URL}, srv.Client(), cb)

	if _, err := c.GetByID(context.Background(), 1); err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status fault, got %v", err)
	}
	if _, err := c.GetByID(context.Background(), 1); !errors.Is(err, resilience.ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected a single upstream hit, got %d", hits)
	}
}
