package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestRequest_Key(t *testing.T) {
	req := MustRequest(http.MethodGet, "https://shop.example/api/products?page=2")
	if got, want := req.Key(), "GET https://shop.example/api/products?page=2"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestFromHTTP(t *testing.T) {
	origin, _ := url.Parse("https://shop.example")
	in := httptest.NewRequest(http.MethodGet, "http://proxy.local/products/42?ref=home", nil)
	in.Header.Set("Sec-Fetch-Dest", "document")
	in.Header.Set("Sec-Fetch-Mode", "navigate")
	in.Header.Set("Connection", "keep-alive")

	req := FromHTTP(in, origin, nil)

	if got, want := req.URL.String(), "https://shop.example/products/42?ref=home"; got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
	if !req.IsNavigation() {
		t.Error("IsNavigation() = false, want true")
	}
	if req.Destination != DestinationDocument {
		t.Errorf("Destination = %q, want %q", req.Destination, DestinationDocument)
	}
	if req.Header.Get("Connection") != "" {
		t.Error("hop-by-hop header Connection should be stripped")
	}
}

func TestResponse_Cacheable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		typ    ResponseType
		want   bool
	}{
		{"basic 200", 200, TypeBasic, true},
		{"basic 404", 404, TypeBasic, false},
		{"basic 206", 206, TypeBasic, false},
		{"cors 200", 200, TypeCORS, false},
		{"opaque", 0, TypeOpaque, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Response{StatusCode: tt.status, Type: tt.typ, Header: make(http.Header)}
			if got := r.Cacheable(); got != tt.want {
				t.Errorf("Cacheable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResponse_CloneIsDeep(t *testing.T) {
	r := NewResponse(200, "text/plain", []byte("abc"))
	c := r.Clone()
	c.Body[0] = 'x'
	c.Header.Set("Content-Type", "text/html")

	if string(r.Body) != "abc" {
		t.Errorf("original body mutated: %q", r.Body)
	}
	if r.Header.Get("Content-Type") != "text/plain" {
		t.Error("original header mutated")
	}
}

func TestResponse_Date(t *testing.T) {
	r := NewResponse(200, "", nil)
	if _, ok := r.Date(); ok {
		t.Error("Date() ok = true for missing header")
	}

	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.Header.Set("Date", want.Format(http.TimeFormat))
	got, ok := r.Date()
	if !ok || !got.Equal(want) {
		t.Errorf("Date() = %v, %v; want %v, true", got, ok, want)
	}
}

func TestHTTPNetwork_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/products" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"p1"}]`))
	}))
	defer srv.Close()

	origin, _ := url.Parse(srv.URL)
	n := NewHTTPNetwork(origin, WithHTTPClient(srv.Client()))

	resp, err := n.Fetch(context.Background(), MustRequest(http.MethodGet, "/api/products"))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.Type != TypeBasic {
		t.Errorf("Type = %q, want %q", resp.Type, TypeBasic)
	}
	if string(resp.Body) != `[{"id":"p1"}]` {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestHTTPNetwork_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	origin, _ := url.Parse(srv.URL)
	n := NewHTTPNetwork(origin, WithHTTPClient(srv.Client()), WithMaxBodyBytes(16))

	_, err := n.Fetch(context.Background(), MustRequest(http.MethodGet, "/big"))
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("Fetch() error = %v, want ErrBodyTooLarge", err)
	}
}

func TestHTTPNetwork_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	origin, _ := url.Parse(srv.URL)
	client := srv.Client()
	srv.Close()

	n := NewHTTPNetwork(origin, WithHTTPClient(client))
	_, err := n.Fetch(context.Background(), MustRequest(http.MethodGet, "/"))
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Fetch() error = %v, want ErrNetwork", err)
	}
}

func TestSameOrigin(t *testing.T) {
	a, _ := url.Parse("https://shop.example/a")
	b, _ := url.Parse("https://shop.example/b?x=1")
	c, _ := url.Parse("https://cdn.example/a")
	if !SameOrigin(a, b) {
		t.Error("SameOrigin(a, b) = false, want true")
	}
	if SameOrigin(a, c) {
		t.Error("SameOrigin(a, c) = true, want false")
	}
}
