package artifact

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/artifetch/internal/testutil"
)

func TestFetcherFetch(t *testing.T) {
	body := []byte("prebuilt library bytes")
	srv := testutil.NewServer(t, map[string][]byte{
		"/lib.so": body,
		"/empty":  {},
	})

	tests := []struct {
		name    string
		path    string
		sha256  string
		wantErr func(error) bool
	}{
		{
			name:   "match",
			path:   "/lib.so",
			sha256: testutil.SHA256(body),
		},
		{
			name:   "match_uppercase_hash",
			path:   "/lib.so",
			sha256: strings.ToUpper(testutil.SHA256(body)),
		},
		{
			name:   "mismatch",
			path:   "/lib.so",
			sha256: strings.Repeat("0", 64),
			wantErr: func(err error) bool {
				var ie *IntegrityError
				return errors.As(err, &ie) && ie.Actual == testutil.SHA256(body)
			},
		},
		{
			name:   "empty_body_with_matching_hash",
			path:   "/empty",
			sha256: testutil.SHA256(nil),
			wantErr: func(err error) bool {
				return errors.Is(err, ErrEmptyContent)
			},
		},
		{
			name:   "empty_body_with_wrong_hash_reports_integrity",
			path:   "/empty",
			sha256: testutil.SHA256(body),
			wantErr: func(err error) bool {
				var ie *IntegrityError
				return errors.As(err, &ie)
			},
		},
		{
			name:   "not_found",
			path:   "/missing",
			sha256: testutil.SHA256(body),
			wantErr: func(err error) bool {
				var se *StatusError
				return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFetcher()
			data, err := f.Fetch(context.Background(), srv.URL+tt.path, tt.sha256)

			if tt.wantErr != nil {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if !tt.wantErr(err) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(data) != string(body) {
				t.Errorf("data = %q, want %q", data, body)
			}
		})
	}
}

func TestFetcherFetch_IntegrityErrorCarriesURL(t *testing.T) {
	srv := testutil.NewServer(t, map[string][]byte{"/a.zip": []byte("zip")})

	_, err := NewFetcher().Fetch(context.Background(), srv.URL+"/a.zip", "deadbeef")

	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	if ie.URL != srv.URL+"/a.zip" {
		t.Errorf("URL = %q, want %q", ie.URL, srv.URL+"/a.zip")
	}
	if !strings.Contains(err.Error(), "deadbeef") {
		t.Errorf("error should name the expected hash: %v", err)
	}
}

func TestFetcherFetch_SingleAttemptByDefault(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewFetcher().Fetch(context.Background(), srv.URL, "00")
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestFetcherGet_RetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher(WithRetries(2))
	f.backoff = time.Millisecond

	data, err := f.Fetch(context.Background(), srv.URL, testutil.SHA256([]byte("ok")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("data = %q, want ok", data)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
}

func TestFetcherGet_RetriesExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewFetcher(WithRetries(2))
	f.backoff = time.Millisecond

	_, err := f.Get(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
}

func TestFetcherFetch_IntegrityNotRetried(t *testing.T) {
	srv := testutil.NewServer(t, map[string][]byte{"/a": []byte("tampered")})

	f := NewFetcher(WithRetries(3))
	f.backoff = time.Millisecond

	_, err := f.Fetch(context.Background(), srv.URL+"/a", testutil.SHA256([]byte("original")))
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	if n := srv.Hits("/a"); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestFetcherGet_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := NewFetcher(WithTimeout(50 * time.Millisecond))
	if _, err := f.Get(context.Background(), srv.URL); err == nil {
		t.Fatal("expected timeout error but got none")
	}
}

func TestFetcherGet_ContextCanceled(t *testing.T) {
	srv := testutil.NewServer(t, map[string][]byte{"/a": []byte("x")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFetcher(WithRetries(2)).Get(ctx, srv.URL+"/a")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if n := srv.TotalHits(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestFetcherGet_FollowsRedirects(t *testing.T) {
	srv := testutil.NewServer(t, map[string][]byte{"/final": []byte("payload")})
	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/final", http.StatusFound)
	}))
	defer redirect.Close()

	data, err := NewFetcher().Get(context.Background(), redirect.URL+"/start")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("data = %q, want payload", data)
	}
}

func TestWithTimeout_DoesNotMutateSharedClient(t *testing.T) {
	transport := &http.Transport{}
	shared := &http.Client{Transport: transport}

	f := NewFetcher(WithHTTPClient(shared), WithTimeout(time.Second))

	if shared.Timeout != 0 {
		t.Errorf("shared client Timeout = %v, want 0", shared.Timeout)
	}
	if f.client == shared {
		t.Fatal("fetcher should use its own copy of the client")
	}
	if f.client.Timeout != time.Second {
		t.Errorf("fetcher Timeout = %v, want 1s", f.client.Timeout)
	}
	if f.client.Transport != transport {
		t.Error("copied client should keep the caller's transport")
	}
}
