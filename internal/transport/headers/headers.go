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

// Package headers sets the authorization and quota headers derived from a
// token and its credentials on HTTP requests and gRPC metadata.
package headers

import (
	"net/http"

	"github.com/identitypool/auth"
	"github.com/identitypool/auth/internal"
)

const quotaProjectMetadataKey = "x-goog-user-project"

// SetAuthHeader uses the provided token to set the Authorization header on a
// request. If the token.Type is empty, the type is assumed to be Bearer.
func SetAuthHeader(token *auth.Token, req *http.Request) {
	req.Header.Set("Authorization", authValue(token))
}

// SetAuthMetadata uses the provided token to set the authorization metadata.
// If the token.Type is empty, the type is assumed to be Bearer.
func SetAuthMetadata(token *auth.Token, m map[string]string) {
	m["authorization"] = authValue(token)
}

// SetQuotaProjectHeader sets the X-Goog-User-Project header when quotaProject
// is not empty and the request does not already carry one.
func SetQuotaProjectHeader(quotaProject string, req *http.Request) {
	if quotaProject == "" || req.Header.Get(internal.QuotaProjectHeaderKey) != "" {
		return
	}
	req.Header.Set(internal.QuotaProjectHeaderKey, quotaProject)
}

// SetQuotaProjectMetadata is the gRPC metadata counterpart of
// [SetQuotaProjectHeader].
func SetQuotaProjectMetadata(quotaProject string, m map[string]string) {
	if quotaProject == "" {
		return
	}
	if _, ok := m[quotaProjectMetadataKey]; ok {
		return
	}
	m[quotaProjectMetadataKey] = quotaProject
}

func authValue(token *auth.Token) string {
	typ := token.Type
	if typ == "" {
		typ = internal.TokenTypeBearer
	}
	return typ + " " + token.Value
}
