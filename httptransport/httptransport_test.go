// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httptransport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/googleapis/gax-go/v2/callctx"
	"github.com/identitypool/auth"
	"github.com/identitypool/auth/internal"
)

type staticTP string

func (s staticTP) Token(context.Context) (*auth.Token, error) {
	return &auth.Token{
		Value: string(s),
	}, nil
}

type rt struct{}

func (r *rt) RoundTrip(req *http.Request) (*http.Response, error) { return nil, nil }

func TestAddAuthorizationMiddleware(t *testing.T) {
	creds := auth.NewCredentials(&auth.CredentialsOptions{
		TokenProvider: staticTP("fakeToken"),
	})
	tests := []struct {
		name    string
		client  *http.Client
		creds   *auth.Credentials
		wantErr bool
	}{
		{
			name:    "missing both fields",
			wantErr: true,
		},
		{
			name:    "missing client field",
			creds:   creds,
			wantErr: true,
		},
		{
			name:    "missing creds field",
			client:  http.DefaultClient,
			wantErr: true,
		},
		{
			name:   "works",
			client: &http.Client{Transport: http.DefaultTransport},
			creds:  creds,
		},
		{
			name:   "works with no transport",
			client: &http.Client{},
			creds:  creds,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AddAuthorizationMiddleware(tt.client, tt.creds)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("AddAuthorizationMiddleware() = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("AddAuthorizationMiddleware() = %v", err)
			}
			if _, ok := tt.client.Transport.(*authTransport); !ok {
				t.Fatalf("got %T, want *authTransport", tt.client.Transport)
			}
		})
	}
}

func TestAddAuthorizationMiddleware_HandlesNonTransportAsDefaultTransport(t *testing.T) {
	// Set http.DefaultTransport to a non-Transport RoundTripper.
	origDefaultTransport := http.DefaultTransport
	defer func() {
		http.DefaultTransport = origDefaultTransport
	}()
	http.DefaultTransport = &rt{}

	client := &http.Client{}
	creds := auth.NewCredentials(&auth.CredentialsOptions{
		TokenProvider: staticTP("fakeToken"),
	})
	if err := AddAuthorizationMiddleware(client, creds); err != nil {
		t.Fatalf("AddAuthorizationMiddleware() = %v", err)
	}
	at, ok := client.Transport.(*authTransport)
	if !ok {
		t.Fatalf("got %T, want *authTransport", client.Transport)
	}
	if _, ok := at.base.(*rt); !ok {
		t.Errorf("got base %T, want *rt", at.base)
	}
}

func TestNewClient_ValidatesOptions(t *testing.T) {
	if _, err := NewClient(nil); err == nil {
		t.Error("NewClient(nil) = nil error, want error")
	}
	if _, err := NewClient(&Options{}); err == nil {
		t.Error("NewClient() without Credentials = nil error, want error")
	}
	if _, err := NewClient(&Options{DisableAuthentication: true}); err != nil {
		t.Errorf("NewClient() with DisableAuthentication = %v", err)
	}
}

func TestNewClient_SetsHeaders(t *testing.T) {
	var gotAuth, gotQuota, gotStatic, gotCall string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuota = r.Header.Get("X-Goog-User-Project")
		gotStatic = r.Header.Get("X-Static")
		gotCall = r.Header.Get("X-Per-Call")
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	creds := auth.NewCredentials(&auth.CredentialsOptions{
		TokenProvider:  staticTP("fakeToken"),
		QuotaProjectID: "my-quota",
	})
	client, err := NewClient(&Options{
		Credentials:      creds,
		DisableTelemetry: true,
		Headers:          http.Header{"X-Static": []string{"static"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := callctx.SetHeaders(context.Background(), "X-Per-Call", "call")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if b, _ := io.ReadAll(resp.Body); string(b) != "ok" {
		t.Errorf("got body %q, want %q", b, "ok")
	}
	if want := "Bearer fakeToken"; gotAuth != want {
		t.Errorf("got Authorization %q, want %q", gotAuth, want)
	}
	if want := "my-quota"; gotQuota != want {
		t.Errorf("got X-Goog-User-Project %q, want %q", gotQuota, want)
	}
	if want := "static"; gotStatic != want {
		t.Errorf("got X-Static %q, want %q", gotStatic, want)
	}
	if want := "call"; gotCall != want {
		t.Errorf("got X-Per-Call %q, want %q", gotCall, want)
	}
}

func TestNewClient_DoesNotOverrideQuotaProject(t *testing.T) {
	var gotQuota string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuota = r.Header.Get("X-Goog-User-Project")
	}))
	defer ts.Close()

	creds := auth.NewCredentials(&auth.CredentialsOptions{
		TokenProvider:  staticTP("fakeToken"),
		QuotaProjectID: "from-creds",
	})
	client, err := NewClient(&Options{Credentials: creds, DisableTelemetry: true})
	if err != nil {
		t.Fatal(err)
	}
	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	req.Header.Set("X-Goog-User-Project", "from-request")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if want := "from-request"; gotQuota != want {
		t.Errorf("got X-Goog-User-Project %q, want %q", gotQuota, want)
	}
}

func TestNewClient_QuotaProjectFromEnvironment(t *testing.T) {
	testQuota := "testquota"
	t.Setenv(internal.QuotaProjectEnvVar, testQuota)
	var gotQuota string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuota = r.Header.Get("X-Goog-User-Project")
	}))
	defer ts.Close()

	creds := auth.NewCredentials(&auth.CredentialsOptions{
		TokenProvider: staticTP("fakeToken"),
	})
	client, err := NewClient(&Options{Credentials: creds, DisableTelemetry: true})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if gotQuota != testQuota {
		t.Errorf("got X-Goog-User-Project %q, want %q", gotQuota, testQuota)
	}
}

func TestNewClient_TokenErrorAbortsRequest(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ts.Close()

	wantErr := errors.New("no token for you")
	creds := auth.NewCredentials(&auth.CredentialsOptions{
		TokenProvider: auth.TokenProviderFunc(func(context.Context) (*auth.Token, error) {
			return nil, wantErr
		}),
	})
	client, err := NewClient(&Options{Credentials: creds, DisableTelemetry: true})
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.Get(ts.URL)
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	var rErr *auth.RefreshError
	if !errors.As(err, &rErr) {
		t.Errorf("got %T, want *auth.RefreshError in chain", err)
	}
	if got := atomic.LoadInt32(&hits); got != 0 {
		t.Errorf("server hit %d times, want 0", got)
	}
}

func TestNewClient_ConcurrentRequestsShareRefresh(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	var calls int32
	creds := auth.NewCredentials(&auth.CredentialsOptions{
		TokenProvider: auth.TokenProviderFunc(func(context.Context) (*auth.Token, error) {
			atomic.AddInt32(&calls, 1)
			time.Sleep(10 * time.Millisecond)
			return &auth.Token{Value: "shared", Expiry: time.Now().Add(time.Hour)}, nil
		}),
	})
	client, err := NewClient(&Options{Credentials: creds, DisableTelemetry: true})
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(ts.URL)
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("token provider called %d times, want 1", got)
	}
}
