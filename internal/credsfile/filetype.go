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

// Package credsfile is meant to hide implementation details from the pubic
// surface of the credentials package. It should not be used by other packages.
package credsfile

// CredentialType represents different credential filetypes Google credentials
// can be.
type CredentialType int

const (
	// UnknownCredType is an unidentified file type.
	UnknownCredType CredentialType = iota
	// ExternalAccountKey represents a file type for an external account.
	ExternalAccountKey
)

// ExternalAccountFile representation.
type ExternalAccountFile struct {
	Type                           string            `json:"type"`
	ClientID                       string            `json:"client_id,omitempty"`
	ClientSecret                   string            `json:"client_secret,omitempty"`
	Audience                       string            `json:"audience"`
	SubjectTokenType               string            `json:"subject_token_type"`
	ServiceAccountImpersonationURL string            `json:"service_account_impersonation_url,omitempty"`
	Delegates                      []string          `json:"delegates,omitempty"`
	TokenURL                       string            `json:"token_url"`
	CredentialSource               *CredentialSource `json:"credential_source,omitempty"`
	QuotaProjectID                 string            `json:"quota_project_id,omitempty"`
	Scopes                         []string          `json:"scopes,omitempty"`
	DefaultScopes                  []string          `json:"default_scopes,omitempty"`
	UniverseDomain                 string            `json:"universe_domain,omitempty"`
}

// CredentialSource stores the information necessary to retrieve the
// credentials for the STS exchange.
type CredentialSource struct {
	File          string            `json:"file,omitempty"`
	URL           string            `json:"url,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	EnvironmentID string            `json:"environment_id,omitempty"`
	Format        *Format           `json:"format,omitempty"`
}

// Format describes the format of a [CredentialSource].
type Format struct {
	// Type is either "text" or "json". When not provided "text" type is assumed.
	Type string `json:"type,omitempty"`
	// SubjectTokenFieldName is only required for JSON format. This would be "access_token" for azure.
	SubjectTokenFieldName string `json:"subject_token_field_name,omitempty"`
}
