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

// Package impersonate mints service account access tokens from the IAM
// Credentials generateAccessToken endpoint, authorizing the call with a token
// obtained from another provider.
package impersonate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/googleapis/gax-go/v2/internallog"
	"github.com/identitypool/auth"
	"github.com/identitypool/auth/internal"
)

// DefaultLifetime is the lifetime requested for every impersonated token.
// The endpoint may enforce a shorter ceiling.
const DefaultLifetime = "3600s"

// generateAccessTokenReq is the request body. Field order is the order on the
// wire, and delegates is sent as null when there is no chain.
type generateAccessTokenReq struct {
	Delegates []string `json:"delegates"`
	Scope     []string `json:"scope"`
	Lifetime  string   `json:"lifetime"`
}

type generateAccessTokenResp struct {
	AccessToken string `json:"accessToken"`
	ExpireTime  string `json:"expireTime"`
}

// NewTokenProvider uses a source credential, stored in Tp, to request an access token to the provided URL.
// Scopes can be defined when the access token is requested.
func NewTokenProvider(opts *Options) (auth.TokenProvider, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Options for [NewTokenProvider].
type Options struct {
	// Tp is the source credential used to generate a token on the
	// impersonated service account. Required.
	Tp auth.TokenProvider

	// URL is the endpoint to call to generate a token
	// on behalf of the service account. Required.
	URL string
	// Scopes that the impersonated credential should have. Required.
	Scopes []string
	// Delegates are the service account email addresses in a delegation chain.
	// Each service account must be granted roles/iam.serviceAccountTokenCreator
	// on the next service account in the chain. Optional.
	Delegates []string
	// Client configures the underlying client used to make network requests
	// when fetching tokens. Required.
	Client *http.Client
	// Logger is used for debug logging. If provided, logging will be enabled
	// at the loggers configured level. By default logging is disabled unless
	// enabled by setting GOOGLE_SDK_GO_LOGGING_LEVEL in which case a default
	// logger will be used. Optional.
	Logger *slog.Logger
}

func (o *Options) validate() error {
	if o.Tp == nil {
		return errors.New("impersonate: a source TokenProvider must be provided")
	}
	if o.URL == "" {
		return errors.New("impersonate: a URL must be provided")
	}
	return nil
}

// Token performs the exchange to get a temporary service account token to allow access to GCP.
func (o *Options) Token(ctx context.Context) (*auth.Token, error) {
	logger := internallog.New(o.Logger)
	var delegates []string
	for _, v := range o.Delegates {
		delegates = append(delegates, internal.FormatIAMServiceAccountResource(v))
	}
	reqBody := generateAccessTokenReq{
		Delegates: delegates,
		Scope:     o.Scopes,
		Lifetime:  DefaultLifetime,
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &auth.ImpersonationError{URL: o.URL, Err: fmt.Errorf("impersonate: unable to marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL, bytes.NewReader(b))
	if err != nil {
		return nil, &auth.ImpersonationError{URL: o.URL, Err: fmt.Errorf("impersonate: unable to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	tok, err := o.Tp.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", internal.TokenTypeBearer+" "+tok.Value)

	logger.DebugContext(ctx, "impersonated token request", "request", internallog.HTTPRequest(req, b))
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, &auth.ImpersonationError{URL: o.URL, Err: fmt.Errorf("impersonate: unable to generate access token: %w", err)}
	}
	defer resp.Body.Close()
	body, err := internal.ReadAll(resp.Body)
	if err != nil {
		return nil, &auth.ImpersonationError{URL: o.URL, Err: fmt.Errorf("impersonate: unable to read body: %w", err)}
	}
	logger.DebugContext(ctx, "impersonated token response", "response", internallog.HTTPResponse(resp, body))
	if !internal.IsSuccess(resp.StatusCode) {
		return nil, &auth.ImpersonationError{URL: o.URL, Err: &auth.Error{Response: resp, Body: body}}
	}

	var accessTokenResp generateAccessTokenResp
	if err := json.Unmarshal(body, &accessTokenResp); err != nil {
		return nil, &auth.ImpersonationError{URL: o.URL, Err: fmt.Errorf("impersonate: unable to parse response: %w", err)}
	}
	if accessTokenResp.AccessToken == "" {
		return nil, &auth.ImpersonationError{URL: o.URL, Err: errors.New("impersonate: response is missing accessToken")}
	}
	expiry, err := time.Parse(time.RFC3339, accessTokenResp.ExpireTime)
	if err != nil {
		return nil, &auth.ImpersonationError{URL: o.URL, Err: fmt.Errorf("impersonate: unable to parse expiry: %w", err)}
	}
	return &auth.Token{
		Value:  accessTokenResp.AccessToken,
		Expiry: expiry,
		Type:   internal.TokenTypeBearer,
		Scopes: slices.Clone(o.Scopes),
	}, nil
}
