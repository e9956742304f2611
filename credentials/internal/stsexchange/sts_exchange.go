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

// Package stsexchange implements the client side of the OAuth 2.0 token
// exchange protocol (rfc8693) spoken by Security Token Service endpoints.
package stsexchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/googleapis/gax-go/v2/internallog"
	"github.com/identitypool/auth"
	"github.com/identitypool/auth/internal"
)

const (
	// GrantType for a sts exchange.
	GrantType = "urn:ietf:params:oauth:grant-type:token-exchange"
	// TokenType for a sts exchange.
	TokenType = "urn:ietf:params:oauth:token-type:access_token"
)

// Options stores the configuration for making an sts exchange request.
type Options struct {
	Client         *http.Client
	Logger         *slog.Logger
	Endpoint       string
	Request        *TokenRequest
	Authentication ClientAuthentication
	Headers        http.Header
}

// TokenRequest contains fields necessary to make an oauth2 token
// exchange.
type TokenRequest struct {
	Audience         string
	Scope            []string
	SubjectToken     string
	SubjectTokenType string
}

// TokenResponse is used to decode the remote server response during
// an oauth2 token exchange.
type TokenResponse struct {
	AccessToken     string `json:"access_token"`
	IssuedTokenType string `json:"issued_token_type"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int    `json:"expires_in"`
	Scope           string `json:"scope"`
}

// wireResponse mirrors TokenResponse with pointer fields so that absent keys
// can be told apart from zero values.
type wireResponse struct {
	AccessToken     *string `json:"access_token"`
	IssuedTokenType *string `json:"issued_token_type"`
	TokenType       *string `json:"token_type"`
	ExpiresIn       *int    `json:"expires_in"`
	Scope           *string `json:"scope"`
}

// ExchangeToken performs an oauth2 token exchange with the provided endpoint.
// A non-2xx answer or a body missing any of access_token, issued_token_type,
// token_type, expires_in or scope results in an [*auth.ExchangeError].
func ExchangeToken(ctx context.Context, opts *Options) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("audience", opts.Request.Audience)
	data.Set("grant_type", GrantType)
	data.Set("requested_token_type", TokenType)
	data.Set("subject_token_type", opts.Request.SubjectTokenType)
	data.Set("subject_token", opts.Request.SubjectToken)
	data.Set("scope", strings.Join(opts.Request.Scope, " "))

	headers := opts.Headers
	if headers == nil {
		headers = http.Header{}
	}
	opts.Authentication.InjectAuthentication(data, headers)
	return doRequest(ctx, opts, headers, data)
}

func doRequest(ctx context.Context, opts *Options, headers http.Header, data url.Values) (*TokenResponse, error) {
	logger := internallog.New(opts.Logger)
	encodedData := data.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.Endpoint, strings.NewReader(encodedData))
	if err != nil {
		return nil, &auth.ExchangeError{URL: opts.Endpoint, Err: fmt.Errorf("stsexchange: failed to properly build http request: %w", err)}
	}
	for key, list := range headers {
		for _, val := range list {
			req.Header.Add(key, val)
		}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Content-Length", strconv.Itoa(len(encodedData)))

	logger.DebugContext(ctx, "sts token request", "request", internallog.HTTPRequest(req, []byte(encodedData)))
	resp, err := opts.Client.Do(req)
	if err != nil {
		return nil, &auth.ExchangeError{URL: opts.Endpoint, Err: fmt.Errorf("stsexchange: invalid response from Secure Token Server: %w", err)}
	}
	defer resp.Body.Close()
	body, err := internal.ReadAll(resp.Body)
	if err != nil {
		return nil, &auth.ExchangeError{URL: opts.Endpoint, Err: err}
	}
	logger.DebugContext(ctx, "sts token response", "response", internallog.HTTPResponse(resp, body))
	if !internal.IsSuccess(resp.StatusCode) {
		return nil, &auth.ExchangeError{URL: opts.Endpoint, Err: &auth.Error{Response: resp, Body: body}}
	}
	stsResp, err := decodeResponse(body)
	if err != nil {
		return nil, &auth.ExchangeError{URL: opts.Endpoint, Err: err}
	}
	return stsResp, nil
}

func decodeResponse(body []byte) (*TokenResponse, error) {
	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("stsexchange: failed to unmarshal response body from Secure Token Server: %w", err)
	}
	var missing []string
	if w.AccessToken == nil {
		missing = append(missing, "access_token")
	}
	if w.IssuedTokenType == nil {
		missing = append(missing, "issued_token_type")
	}
	if w.TokenType == nil {
		missing = append(missing, "token_type")
	}
	if w.ExpiresIn == nil {
		missing = append(missing, "expires_in")
	}
	if w.Scope == nil {
		missing = append(missing, "scope")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("stsexchange: response is missing required fields: %s", strings.Join(missing, ", "))
	}
	if *w.AccessToken == "" {
		return nil, errors.New("stsexchange: got empty access_token in response")
	}
	if *w.ExpiresIn < 0 {
		return nil, errors.New("stsexchange: got invalid expiry from security token service")
	}
	return &TokenResponse{
		AccessToken:     *w.AccessToken,
		IssuedTokenType: *w.IssuedTokenType,
		TokenType:       *w.TokenType,
		ExpiresIn:       *w.ExpiresIn,
		Scope:           *w.Scope,
	}, nil
}
