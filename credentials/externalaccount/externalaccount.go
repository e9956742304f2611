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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/identitypool/auth"
	iexacc "github.com/identitypool/auth/credentials/internal/externalaccount"
	"github.com/identitypool/auth/internal"
	"github.com/identitypool/auth/internal/credsfile"
)

var credentialType = credsfile.ParseCredentialTypeString(credsfile.ExternalAccountKey)

// Options for creating a [Credentials].
type Options struct {
	// Audience is the Secure Token Service (STS) audience which contains the
	// resource name for the workload identity pool and the provider
	// identifier in that pool. Required.
	Audience string
	// SubjectTokenType is the STS token type as
	// defined by RFC 8693. Expected values include:
	// “urn:ietf:params:oauth:token-type:jwt”
	// “urn:ietf:params:oauth:token-type:id-token”
	// “urn:ietf:params:oauth:token-type:saml2”
	// Required.
	SubjectTokenType string
	// TokenURL is the STS token exchange endpoint. If not provided, will
	// default to https://sts.UNIVERSE_DOMAIN/v1/token, with UNIVERSE_DOMAIN set
	// to the default service domain googleapis.com unless UniverseDomain is
	// set. Optional.
	TokenURL string
	// ServiceAccountImpersonationURL is the URL for the service account
	// impersonation request. Optional.
	ServiceAccountImpersonationURL string
	// ServiceAccountImpersonationDelegates are the service account emails of
	// the delegation chain used during impersonation. Optional.
	ServiceAccountImpersonationDelegates []string
	// ClientSecret and ClientID are sent to the STS endpoint as HTTP basic
	// credentials when both are set. Optional.
	ClientSecret string
	ClientID     string
	// CredentialSource contains the necessary information to retrieve the
	// subject token. Required.
	CredentialSource *CredentialSource
	// QuotaProjectID is passed through to transports, which set it as the
	// X-Goog-User-Project header. Optional.
	QuotaProjectID string
	// Scopes contains the desired scopes for the returned access token.
	// Optional.
	Scopes []string
	// DefaultScopes are requested when Scopes is empty. Client libraries set
	// these; users should set Scopes. Optional.
	DefaultScopes []string
	// UniverseDomain is the default service domain for a given Cloud
	// universe. It is used to build the default TokenURL. Optional.
	UniverseDomain string
	// ExpireEarly is how long before its expiry a token is already treated as
	// expired. Defaults to zero. Optional.
	ExpireEarly time.Duration

	// Client configures the underlying client used to make network requests
	// when fetching tokens. Optional.
	Client *http.Client
	// Logger is used for debug logging. If provided, logging will be enabled
	// at the loggers configured level. By default logging is disabled unless
	// enabled by setting GOOGLE_SDK_GO_LOGGING_LEVEL in which case a default
	// logger will be used. Optional.
	Logger *slog.Logger
}

// CredentialSource stores the information necessary to retrieve the
// subject token. Exactly one of File or URL must be set.
type CredentialSource struct {
	// File is the location of a file containing the subject token.
	File string
	// URL is the URL to call with a GET request to retrieve the subject token.
	URL string
	// Headers are added to the GET request made to URL. Optional.
	Headers map[string]string
	// EnvironmentID identifies AWS credential sources, which are not
	// supported here. Setting it is an error.
	EnvironmentID string
	// Format describes the format of the subject token. Optional, the raw
	// content is used as the token when not set.
	Format *Format
}

// Format describes the format of a [CredentialSource].
type Format struct {
	// Type is either "text" or "json". When not provided "text" type is assumed.
	Type string
	// SubjectTokenFieldName is only required for JSON format. This is the field
	// name that the credentials will check for the subject token in the file or
	// URL response. This would be "access_token" for azure.
	SubjectTokenFieldName string
}

// LoadOptions are the settings applied on top of a JSON configuration by
// [NewCredentialsFromJSON] and [NewCredentialsFromFile].
type LoadOptions struct {
	// Scopes override any scopes found in the JSON. Optional.
	Scopes []string
	// DefaultScopes override any default scopes found in the JSON. Optional.
	DefaultScopes []string
	// ExpireEarly is how long before its expiry a token is already treated as
	// expired. Optional.
	ExpireEarly time.Duration
	// Client is used for all network requests. Optional.
	Client *http.Client
	// Logger is used for debug logging. Optional.
	Logger *slog.Logger
}

// Credentials are external account credentials. The embedded
// [auth.Credentials] provides the refresh, valid and expired lifecycle.
type Credentials struct {
	*auth.Credentials

	opts *iexacc.Options
}

func (o *Options) validate() error {
	if o == nil {
		return &auth.ConfigError{Msg: "options must be provided"}
	}
	return nil
}

func (o *Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return internal.CloneDefaultClient()
}

func (o *Options) toInternalOpts() *iexacc.Options {
	iOpts := &iexacc.Options{
		Audience:                             o.Audience,
		SubjectTokenType:                     o.SubjectTokenType,
		TokenURL:                             o.TokenURL,
		ServiceAccountImpersonationURL:       o.ServiceAccountImpersonationURL,
		ServiceAccountImpersonationDelegates: slices.Clone(o.ServiceAccountImpersonationDelegates),
		ClientSecret:                         o.ClientSecret,
		ClientID:                             o.ClientID,
		QuotaProjectID:                       o.QuotaProjectID,
		Scopes:                               slices.Clone(o.Scopes),
		DefaultScopes:                        slices.Clone(o.DefaultScopes),
		UniverseDomain:                       o.UniverseDomain,
		Client:                               o.client(),
		Logger:                               o.Logger,
	}
	if o.CredentialSource != nil {
		cs := o.CredentialSource
		iOpts.CredentialSource = &credsfile.CredentialSource{
			File:          cs.File,
			URL:           cs.URL,
			Headers:       maps.Clone(cs.Headers),
			EnvironmentID: cs.EnvironmentID,
		}
		if cs.Format != nil {
			iOpts.CredentialSource.Format = &credsfile.Format{
				Type:                  cs.Format.Type,
				SubjectTokenFieldName: cs.Format.SubjectTokenFieldName,
			}
		}
	}
	return iOpts
}

// NewCredentials returns a [Credentials] configured with the provided
// options. The configuration, including the shape of the credential source,
// is validated before any network activity; an invalid one results in an
// [*auth.ConfigError]. No token is fetched until the first refresh.
func NewCredentials(opts *Options) (*Credentials, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	iOpts := opts.toInternalOpts()
	tp, err := iexacc.NewTokenProvider(iOpts)
	if err != nil {
		return nil, err
	}
	return &Credentials{
		Credentials: auth.NewCredentials(&auth.CredentialsOptions{
			TokenProvider:  tp,
			ExpireEarly:    opts.ExpireEarly,
			QuotaProjectID: opts.QuotaProjectID,
			UniverseDomain: opts.UniverseDomain,
			Logger:         opts.Logger,
		}),
		opts: iOpts,
	}, nil
}

// NewCredentialsFromJSON creates [Credentials] from an external account JSON
// configuration. The JSON must have "type" set to "external_account".
func NewCredentialsFromJSON(b []byte, lo *LoadOptions) (*Credentials, error) {
	fileType, err := credsfile.ParseFileType(b)
	if err != nil {
		return nil, &auth.ConfigError{Msg: fmt.Sprintf("unable to parse credential configuration: %v", err)}
	}
	if fileType != credsfile.ExternalAccountKey {
		return nil, &auth.ConfigError{Field: "type", Msg: fmt.Sprintf("unsupported credential type, want %q", credentialType)}
	}
	f, err := credsfile.ParseExternalAccount(b)
	if err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "credential_source" {
			return nil, &auth.ConfigError{Field: "credential_source", Msg: "missing credential_source: one of 'file' or 'url' must be set"}
		}
		return nil, &auth.ConfigError{Msg: fmt.Sprintf("unable to parse credential configuration: %v", err)}
	}
	return NewCredentials(optionsFromFile(f, lo))
}

// NewCredentialsFromFile is like [NewCredentialsFromJSON] but reads the JSON
// from the named file.
func NewCredentialsFromFile(path string, lo *LoadOptions) (*Credentials, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("externalaccount: unable to read credential configuration: %w", err)
	}
	return NewCredentialsFromJSON(b, lo)
}

func optionsFromFile(f *credsfile.ExternalAccountFile, lo *LoadOptions) *Options {
	opts := &Options{
		Audience:                             f.Audience,
		SubjectTokenType:                     f.SubjectTokenType,
		TokenURL:                             f.TokenURL,
		ServiceAccountImpersonationURL:       f.ServiceAccountImpersonationURL,
		ServiceAccountImpersonationDelegates: slices.Clone(f.Delegates),
		ClientSecret:                         f.ClientSecret,
		ClientID:                             f.ClientID,
		QuotaProjectID:                       f.QuotaProjectID,
		Scopes:                               slices.Clone(f.Scopes),
		DefaultScopes:                        slices.Clone(f.DefaultScopes),
		UniverseDomain:                       f.UniverseDomain,
	}
	if cs := f.CredentialSource; cs != nil {
		opts.CredentialSource = &CredentialSource{
			File:          cs.File,
			URL:           cs.URL,
			Headers:       maps.Clone(cs.Headers),
			EnvironmentID: cs.EnvironmentID,
		}
		if cs.Format != nil {
			opts.CredentialSource.Format = &Format{
				Type:                  cs.Format.Type,
				SubjectTokenFieldName: cs.Format.SubjectTokenFieldName,
			}
		}
	}
	if lo != nil {
		if len(lo.Scopes) > 0 {
			opts.Scopes = slices.Clone(lo.Scopes)
		}
		if len(lo.DefaultScopes) > 0 {
			opts.DefaultScopes = slices.Clone(lo.DefaultScopes)
		}
		opts.ExpireEarly = lo.ExpireEarly
		opts.Client = lo.Client
		opts.Logger = lo.Logger
	}
	return opts
}

// RetrieveSubjectToken reads the subject token from the configured credential
// source without exchanging it. Failures are reported as an
// [*auth.SubjectTokenError].
func (c *Credentials) RetrieveSubjectToken(ctx context.Context) (string, error) {
	return iexacc.SubjectToken(ctx, c.opts)
}

// Scopes returns the scopes requested for the final access token: Scopes if
// set, DefaultScopes otherwise.
func (c *Credentials) Scopes() []string {
	return slices.Clone(c.opts.ResolvedScopes())
}

// Info returns the configuration of the credentials as a map suitable for
// JSON encoding. The result can be loaded back with [NewCredentialsFromJSON].
// Optional fields are present only when set.
func (c *Credentials) Info() map[string]interface{} {
	o := c.opts
	info := map[string]interface{}{
		"type":               credentialType,
		"audience":           o.Audience,
		"subject_token_type": o.SubjectTokenType,
		"token_url":          o.TokenURL,
		"credential_source":  credentialSourceInfo(o.CredentialSource),
	}
	if o.ServiceAccountImpersonationURL != "" {
		info["service_account_impersonation_url"] = o.ServiceAccountImpersonationURL
	}
	if len(o.ServiceAccountImpersonationDelegates) > 0 {
		info["delegates"] = slices.Clone(o.ServiceAccountImpersonationDelegates)
	}
	if o.ClientID != "" {
		info["client_id"] = o.ClientID
	}
	if o.ClientSecret != "" {
		info["client_secret"] = o.ClientSecret
	}
	if o.QuotaProjectID != "" {
		info["quota_project_id"] = o.QuotaProjectID
	}
	if o.UniverseDomain != "" {
		info["universe_domain"] = o.UniverseDomain
	}
	return info
}

func credentialSourceInfo(cs *credsfile.CredentialSource) map[string]interface{} {
	m := map[string]interface{}{}
	if cs.File != "" {
		m["file"] = cs.File
	}
	if cs.URL != "" {
		m["url"] = cs.URL
	}
	if len(cs.Headers) > 0 {
		m["headers"] = maps.Clone(cs.Headers)
	}
	if cs.Format != nil {
		f := map[string]interface{}{}
		if cs.Format.Type != "" {
			f["type"] = cs.Format.Type
		}
		if cs.Format.SubjectTokenFieldName != "" {
			f["subject_token_field_name"] = cs.Format.SubjectTokenFieldName
		}
		m["format"] = f
	}
	return m
}
