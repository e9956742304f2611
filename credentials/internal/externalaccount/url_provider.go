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
	"fmt"
	"log/slog"
	"net/http"

	"github.com/googleapis/gax-go/v2/internallog"
	"github.com/identitypool/auth"
	"github.com/identitypool/auth/internal"
	"github.com/identitypool/auth/internal/credsfile"
)

type urlSubjectProvider struct {
	URL     string
	Headers map[string]string
	Format  *credsfile.Format
	Client  *http.Client
	logger  *slog.Logger
}

func (sp *urlSubjectProvider) subjectToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sp.URL, nil)
	if err != nil {
		return "", &auth.SubjectTokenError{Op: auth.SubjectTokenOpFetch, Source: sp.URL, Err: fmt.Errorf("unable to create subject token request: %w", err)}
	}
	for key, val := range sp.Headers {
		req.Header.Add(key, val)
	}
	sp.logger.DebugContext(ctx, "url subject token request", "request", internallog.HTTPRequest(req, nil))
	resp, err := sp.Client.Do(req)
	if err != nil {
		return "", &auth.SubjectTokenError{Op: auth.SubjectTokenOpFetch, Source: sp.URL, Err: fmt.Errorf("unable to retrieve subject token from %q: %w", sp.URL, err)}
	}
	defer resp.Body.Close()
	body, err := internal.ReadAll(resp.Body)
	if err != nil {
		return "", &auth.SubjectTokenError{Op: auth.SubjectTokenOpFetch, Source: sp.URL, StatusCode: resp.StatusCode, Err: fmt.Errorf("unable to read subject token response from %q: %w", sp.URL, err)}
	}
	sp.logger.DebugContext(ctx, "url subject token response", "response", internallog.HTTPResponse(resp, body))
	if !internal.IsSuccess(resp.StatusCode) {
		return "", &auth.SubjectTokenError{
			Op:         auth.SubjectTokenOpFetch,
			Source:     sp.URL,
			StatusCode: resp.StatusCode,
			Body:       body,
			Err:        fmt.Errorf("unable to retrieve subject token from %q: status code %d", sp.URL, resp.StatusCode),
		}
	}
	return parseSubjectToken(body, sp.Format, sp.URL)
}

func (sp *urlSubjectProvider) providerType() string {
	return urlProviderType
}
