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

package externalaccount

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/identitypool/auth"
	"github.com/identitypool/auth/internal"
	"github.com/identitypool/auth/internal/credsfile"
)

func TestRetrieveURLSubjectToken_Text(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if want := http.MethodGet; r.Method != want {
			t.Errorf("got %v, want %v", r.Method, want)
		}
		if got, want := r.Header.Get("Metadata"), "True"; got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		if r.ContentLength > 0 {
			t.Errorf("got a request body of %d bytes, want none", r.ContentLength)
		}
		w.Write([]byte("testTokenValue"))
	}))
	defer ts.Close()

	opts := cloneTestOpts()
	opts.CredentialSource = &credsfile.CredentialSource{
		URL:    ts.URL,
		Format: &credsfile.Format{Type: fileTypeText},
		Headers: map[string]string{
			"Metadata": "True",
		},
	}

	base, err := newSubjectTokenProvider(opts)
	if err != nil {
		t.Fatalf("newSubjectTokenProvider() = %v", err)
	}

	got, err := base.subjectToken(context.Background())
	if err != nil {
		t.Fatalf("base.subjectToken() = %v", err)
	}
	if want := "testTokenValue"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := base.providerType(), urlProviderType; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRetrieveURLSubjectToken_Untyped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if want := http.MethodGet; r.Method != want {
			t.Errorf("got %v, want %v", r.Method, want)
		}
		w.Write([]byte("testTokenValue"))
	}))
	defer ts.Close()

	opts := cloneTestOpts()
	opts.CredentialSource = &credsfile.CredentialSource{
		URL: ts.URL,
	}

	base, err := newSubjectTokenProvider(opts)
	if err != nil {
		t.Fatalf("newSubjectTokenProvider() failed %v", err)
	}

	got, err := base.subjectToken(context.Background())
	if err != nil {
		t.Fatalf("base.subjectToken() = %v", err)
	}
	if want := "testTokenValue"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRetrieveURLSubjectToken_JSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got, want := r.Method, "GET"; got != want {
			t.Errorf("got %v, want %v", r.Method, want)
		}
		w.Write([]byte(`{"SubjToken":"testTokenValue"}`))
	}))
	defer ts.Close()

	opts := cloneTestOpts()
	opts.CredentialSource = &credsfile.CredentialSource{
		URL:    ts.URL,
		Format: &credsfile.Format{Type: fileTypeJSON, SubjectTokenFieldName: "SubjToken"},
	}

	base, err := newSubjectTokenProvider(opts)
	if err != nil {
		t.Fatalf("newSubjectTokenProvider() = %v", err)
	}

	got, err := base.subjectToken(context.Background())
	if err != nil {
		t.Fatalf("base.subjectToken() = %v", err)
	}
	if want := "testTokenValue"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRetrieveURLSubjectToken_Errors(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		body           string
		format         *credsfile.Format
		wantOp         string
		wantStatusCode int
		wantField      string
	}{
		{
			name:           "not found",
			status:         http.StatusNotFound,
			body:           `{"SubjToken":"testTokenValue"}`,
			format:         &credsfile.Format{Type: fileTypeJSON, SubjectTokenFieldName: "SubjToken"},
			wantOp:         auth.SubjectTokenOpFetch,
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:      "malformed json",
			status:    http.StatusOK,
			body:      "{",
			format:    &credsfile.Format{Type: fileTypeJSON, SubjectTokenFieldName: "access_token"},
			wantOp:    auth.SubjectTokenOpParse,
			wantField: "access_token",
		},
		{
			name:      "wrong field name",
			status:    http.StatusOK,
			body:      `{"access_token":"testTokenValue"}`,
			format:    &credsfile.Format{Type: fileTypeJSON, SubjectTokenFieldName: "not_found"},
			wantOp:    auth.SubjectTokenOpParse,
			wantField: "not_found",
		},
		{
			name:      "field is not a string",
			status:    http.StatusOK,
			body:      `{"access_token":42}`,
			format:    &credsfile.Format{Type: fileTypeJSON, SubjectTokenFieldName: "access_token"},
			wantOp:    auth.SubjectTokenOpParse,
			wantField: "access_token",
		},
		{
			name:   "empty text body",
			status: http.StatusOK,
			wantOp: auth.SubjectTokenOpParse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			opts := cloneTestOpts()
			opts.CredentialSource = &credsfile.CredentialSource{URL: ts.URL, Format: tt.format}
			_, err := SubjectToken(context.Background(), opts)
			var stErr *auth.SubjectTokenError
			if !errors.As(err, &stErr) {
				t.Fatalf("got %v, want *auth.SubjectTokenError", err)
			}
			if stErr.Op != tt.wantOp {
				t.Errorf("Op = %q, want %q", stErr.Op, tt.wantOp)
			}
			if stErr.StatusCode != tt.wantStatusCode {
				t.Errorf("StatusCode = %d, want %d", stErr.StatusCode, tt.wantStatusCode)
			}
			if stErr.Source != ts.URL {
				t.Errorf("Source = %q, want %q", stErr.Source, ts.URL)
			}
			if stErr.FieldName != tt.wantField {
				t.Errorf("FieldName = %q, want %q", stErr.FieldName, tt.wantField)
			}
		})
	}
}

func TestParseSubjectToken_SameErrorForFileAndURL(t *testing.T) {
	format := &credsfile.Format{Type: fileTypeJSON, SubjectTokenFieldName: "access_token"}
	for _, source := range []string{"/var/run/token.json", "http://localhost/token"} {
		_, err := parseSubjectToken([]byte("{"), format, source)
		want := fmt.Sprintf("auth: unable to parse subject_token from JSON file %q using key %q", source, "access_token")
		if err == nil || err.Error() != want {
			t.Errorf("parseSubjectToken(%q) = %v, want %q", source, err, want)
		}
	}
}

func TestRetrieveURLSubjectToken_StatusErrorOmitsBody(t *testing.T) {
	const payload = `{"error":"denied","credential":"do-not-log"}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(payload))
	}))
	defer ts.Close()

	opts := cloneTestOpts()
	opts.CredentialSource = &credsfile.CredentialSource{URL: ts.URL}
	_, err := SubjectToken(context.Background(), opts)
	var stErr *auth.SubjectTokenError
	if !errors.As(err, &stErr) {
		t.Fatalf("got %v, want *auth.SubjectTokenError", err)
	}
	if strings.Contains(err.Error(), "do-not-log") {
		t.Errorf("err = %q, want the response body left out of the message", err)
	}
	if want := fmt.Sprintf("auth: unable to retrieve subject token from %q: status code 403", ts.URL); err.Error() != want {
		t.Errorf("err = %q, want %q", err, want)
	}
	if got := string(stErr.Body); got != payload {
		t.Errorf("Body = %q, want %q", got, payload)
	}
}

func TestRetrieveURLSubjectToken_BodyTooLarge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 1<<20+10)))
	}))
	defer ts.Close()

	opts := cloneTestOpts()
	opts.CredentialSource = &credsfile.CredentialSource{URL: ts.URL}
	tok, err := SubjectToken(context.Background(), opts)
	if err == nil {
		t.Fatalf("SubjectToken() returned a %d byte token, want an error", len(tok))
	}
	var stErr *auth.SubjectTokenError
	if !errors.As(err, &stErr) {
		t.Fatalf("got %v, want *auth.SubjectTokenError", err)
	}
	if stErr.Op != auth.SubjectTokenOpFetch {
		t.Errorf("Op = %q, want %q", stErr.Op, auth.SubjectTokenOpFetch)
	}
	if !errors.Is(err, internal.ErrBodyTooLarge) {
		t.Errorf("got %v, want it to wrap internal.ErrBodyTooLarge", err)
	}
}
