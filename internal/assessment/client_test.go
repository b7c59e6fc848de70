// File path: internal/assessment/client_test.go
package assessment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crestlinecoaching/buildflow/internal/lead"
)

func testLead() lead.Info {
	return lead.Info{
		FirstName: "Dana",
		LastName:  "Reyes",
		FullName:  "Dana Reyes",
		Email:     "dana@example.com",
		Company:   "Acme",
	}
}

// fastClient removes the retry backoff so failure tests stay quick.
func fastClient(baseURL, apiKey string) *HTTPClient {
	client := New(baseURL, apiKey)
	client.backoff = time.Millisecond
	return client
}

func TestCreateLinkSuccess(t *testing.T) {
	var gotAuth string
	var gotBody createRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/links" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Link{LoginCode: "ABC123", ResponseURL: "https://assess.example.com/r/9"})
	}))
	defer server.Close()

	link, err := fastClient(server.URL, "secret").CreateLink(context.Background(), testLead())
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if link.LoginCode != "ABC123" || link.ResponseURL != "https://assess.example.com/r/9" {
		t.Fatalf("link = %+v", link)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody.Email != "dana@example.com" || gotBody.FirstName != "Dana" {
		t.Errorf("request body = %+v", gotBody)
	}
}

func TestCreateLinkRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(Link{LoginCode: "ABC123"})
	}))
	defer server.Close()

	link, err := fastClient(server.URL, "").CreateLink(context.Background(), testLead())
	if err != nil {
		t.Fatalf("create link: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if link.LoginCode != "ABC123" {
		t.Fatalf("link = %+v", link)
	}
}

func TestCreateLinkGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	if _, err := fastClient(server.URL, "").CreateLink(context.Background(), testLead()); err == nil {
		t.Fatal("persistent 500s produced no error")
	}
	if attempts != maxAttempts {
		t.Fatalf("attempts = %d, want %d", attempts, maxAttempts)
	}
}

func TestCreateLinkClientErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	if _, err := fastClient(server.URL, "").CreateLink(context.Background(), testLead()); err == nil {
		t.Fatal("400 produced no error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (4xx must not retry)", attempts)
	}
}

func TestCreateLinkMissingLoginCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Link{ResponseURL: "https://assess.example.com/r/9"})
	}))
	defer server.Close()

	if _, err := fastClient(server.URL, "").CreateLink(context.Background(), testLead()); err == nil {
		t.Fatal("response without login code accepted")
	}
}

func TestCreateLinkRespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// First attempt may fire before the cancel is observed; the retry wait
	// must abort immediately rather than sleeping out the backoff.
	start := time.Now()
	_, err := client.CreateLink(ctx, testLead())
	if err == nil {
		t.Fatal("cancelled context produced no error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancelled call took %s", elapsed)
	}
}
