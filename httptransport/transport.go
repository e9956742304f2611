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
	"log/slog"
	"net/http"

	"github.com/googleapis/gax-go/v2/callctx"
	"github.com/identitypool/auth"
	"github.com/identitypool/auth/internal/transport/headers"
)

// headerTransport adds static headers and per-call headers stored in the
// request context with [callctx.SetHeaders].
type headerTransport struct {
	headers http.Header
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := t.base
	newReq := *req
	newReq.Header = make(http.Header)
	for k, vv := range req.Header {
		newReq.Header[k] = vv
	}
	for k, v := range t.headers {
		newReq.Header[k] = append(newReq.Header[k], v...)
	}
	for k, vv := range callctx.HeadersFromContext(req.Context()) {
		for _, v := range vv {
			newReq.Header.Add(k, v)
		}
	}
	return rt.RoundTrip(&newReq)
}

// authTransport attaches a token from creds to each request. Token checks
// validity and refreshes under the credentials' lock, so concurrent requests
// share a single refresh.
type authTransport struct {
	creds  *auth.Credentials
	base   http.RoundTripper
	logger *slog.Logger
}

// RoundTrip authorizes and authenticates the request with an
// access token from Transport's Source. Per the RoundTripper contract we must
// not modify the initial request, so we clone it, and we must close the body
// on any error that happens during our token logic.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqBodyClosed := false
	if req.Body != nil {
		defer func() {
			if !reqBodyClosed {
				req.Body.Close()
			}
		}()
	}
	token, err := t.creds.Token(req.Context())
	if err != nil {
		t.logger.DebugContext(req.Context(), "unable to authorize request", "error", err)
		return nil, err
	}
	req2 := req.Clone(req.Context())
	headers.SetAuthHeader(token, req2)
	headers.SetQuotaProjectHeader(t.creds.QuotaProjectID(), req2)
	reqBodyClosed = true
	return t.base.RoundTrip(req2)
}
