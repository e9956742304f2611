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

// Package internal holds helpers shared by the credential packages of this
// module.
package internal

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Version is the version of this module reported in request headers.
const Version = "0.1.0"

const (
	// TokenTypeBearer is the auth header prefix for bearer tokens.
	TokenTypeBearer = "Bearer"

	// QuotaProjectEnvVar is the environment variable for setting the quota
	// project.
	QuotaProjectEnvVar = "GOOGLE_CLOUD_QUOTA_PROJECT"
	// UniverseDomainEnvVar is the environment variable for setting the default
	// service domain for a given Cloud universe.
	UniverseDomainEnvVar = "GOOGLE_CLOUD_UNIVERSE_DOMAIN"
	// DefaultUniverseDomain is the default value for universe domain.
	DefaultUniverseDomain = "googleapis.com"

	// QuotaProjectHeaderKey is the header used to attribute quota and billing
	// to a project other than the one the credentials belong to.
	QuotaProjectHeaderKey = "X-Goog-User-Project"

	maxBodySize = 1 << 20
)

// CloneDefaultClient returns a [http.Client] with some good defaults.
func CloneDefaultClient() *http.Client {
	return &http.Client{
		Transport: http.DefaultClient.Transport,
		Timeout:   30 * time.Second,
	}
}

// ErrBodyTooLarge is returned by [ReadAll] when the body does not fit in the
// size limit.
var ErrBodyTooLarge = errors.New("response body exceeds 1 MiB")

// ReadAll consumes the whole reader and safely reads the content of its body
// with some overflow protection. Bodies over 1 MiB return [ErrBodyTooLarge].
func ReadAll(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxBodySize {
		return nil, ErrBodyTooLarge
	}
	return b, nil
}

// IsSuccess reports whether the status code is in the 2xx range.
func IsSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}

// FormatIAMServiceAccountResource sets a service account name in an IAM
// resource name.
func FormatIAMServiceAccountResource(name string) string {
	return fmt.Sprintf("projects/-/serviceAccounts/%s", name)
}
