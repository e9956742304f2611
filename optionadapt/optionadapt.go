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

// Package optionadapt builds [google.golang.org/api/option.ClientOption]s
// from [github.com/identitypool/auth.Credentials] so that generated Google
// API clients can authenticate with exchanged federated tokens.
package optionadapt

import (
	"errors"

	"github.com/identitypool/auth"
	"github.com/identitypool/auth/oauth2adapt"
	"google.golang.org/api/option"
)

// ClientOptions returns the options that configure a Google API client to
// use creds for authorization, quota attribution and universe selection.
func ClientOptions(creds *auth.Credentials) ([]option.ClientOption, error) {
	if creds == nil {
		return nil, errors.New("optionadapt: creds must not be nil")
	}
	opts := []option.ClientOption{
		option.WithTokenSource(oauth2adapt.TokenSourceFromTokenProvider(creds)),
		option.WithUniverseDomain(creds.UniverseDomain()),
	}
	if qp := creds.QuotaProjectID(); qp != "" {
		opts = append(opts, option.WithQuotaProject(qp))
	}
	return opts, nil
}
