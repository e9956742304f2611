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

// Package externalaccount turns an external account configuration into a
// token provider: it reads the subject token from the configured credential
// source, exchanges it at the STS token endpoint and, when configured,
// impersonates a service account with the result.
package externalaccount

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2/internallog"
	"github.com/identitypool/auth"
	"github.com/identitypool/auth/credentials/internal/impersonate"
	"github.com/identitypool/auth/credentials/internal/stsexchange"
	"github.com/identitypool/auth/internal"
	"github.com/identitypool/auth/internal/credsfile"
	"github.com/identitypool/auth/internal/header"
)

const (
	universeDomainPlaceholder = "UNIVERSE_DOMAIN"
	defaultTokenURL           = "https://sts.UNIVERSE_DOMAIN/v1/token"

	// IAMScope is requested from the token endpoint in place of the caller's
	// scopes when the result is going to be used for impersonation.
	IAMScope = "https://www.googleapis.com/auth/iam"
)

var (
	// Now aliases time.Now for testing
	Now = func() time.Time {
		return time.Now().UTC()
	}
)

// Options stores the configuration for fetching tokens with external credentials.
type Options struct {
	// Audience is the Secure Token Service (STS) audience which contains the resource name for the workload
	// identity pool or the workforce pool and the provider identifier in that pool. Required.
	Audience string
	// SubjectTokenType is the STS token type as defined by RFC 8693
	// e.g. `urn:ietf:params:oauth:token-type:jwt`. Required.
	SubjectTokenType string
	// TokenURL is the STS token exchange endpoint. If not provided, it is
	// derived from UniverseDomain.
	TokenURL string
	// ServiceAccountImpersonationURL is the generateAccessToken URL of the
	// service account to impersonate with the exchanged token. Optional.
	ServiceAccountImpersonationURL string
	// ServiceAccountImpersonationDelegates are the service accounts in the
	// delegation chain used for impersonation. Optional.
	ServiceAccountImpersonationDelegates []string
	// ClientID and ClientSecret authenticate the client to the token
	// endpoint with HTTP basic auth. Both must be set for the header to be
	// sent. Optional.
	ClientID     string
	ClientSecret string
	// CredentialSource describes where the subject token is read from and in
	// what format. Required.
	CredentialSource *credsfile.CredentialSource
	// QuotaProjectID is passed through to transports, which set it as the
	// X-Goog-User-Project header. Optional.
	QuotaProjectID string
	// Scopes contains the desired scopes for the returned access token.
	Scopes []string
	// DefaultScopes are used when Scopes is empty.
	DefaultScopes []string
	// UniverseDomain is the default service domain for a given Cloud universe.
	// This value will be used in the default STS token URL. The default value
	// is "googleapis.com". It will not be used if TokenURL is set. Optional.
	UniverseDomain string

	// Client for token request.
	Client *http.Client
	// Logger for logging.
	Logger *slog.Logger
}

// ResolvedScopes returns Scopes when set and DefaultScopes otherwise.
func (o *Options) ResolvedScopes() []string {
	if len(o.Scopes) > 0 {
		return o.Scopes
	}
	return o.DefaultScopes
}

func (o *Options) validate() error {
	if o.Audience == "" {
		return &auth.ConfigError{Field: "audience", Msg: "missing audience"}
	}
	if o.SubjectTokenType == "" {
		return &auth.ConfigError{Field: "subject_token_type", Msg: "missing subject_token_type"}
	}
	return validateCredentialSource(o.CredentialSource)
}

// validateCredentialSource checks the shape of a credential source in a fixed
// order so the first problem found is always the one reported.
func validateCredentialSource(cs *credsfile.CredentialSource) error {
	if cs == nil {
		return &auth.ConfigError{Field: "credential_source", Msg: "missing credential_source: one of 'file' or 'url' must be set"}
	}
	if cs.EnvironmentID != "" {
		return &auth.ConfigError{Field: "environment_id", Msg: "invalid credential_source field 'environment_id'"}
	}
	if cs.Format != nil {
		switch cs.Format.Type {
		case "", fileTypeText, fileTypeJSON:
		default:
			return &auth.ConfigError{Field: "format", Msg: fmt.Sprintf("invalid credential_source format '%s'", cs.Format.Type)}
		}
		if cs.Format.Type == fileTypeJSON && cs.Format.SubjectTokenFieldName == "" {
			return &auth.ConfigError{Field: "subject_token_field_name", Msg: "missing subject_token_field_name for JSON credential_source format"}
		}
	}
	switch {
	case cs.File != "" && cs.URL != "":
		return &auth.ConfigError{Field: "credential_source", Msg: "ambiguous credential_source: 'file' is mutually exclusive with 'url'"}
	case cs.File == "" && cs.URL == "":
		return &auth.ConfigError{Field: "credential_source", Msg: "missing credential_source: one of 'file' or 'url' must be set"}
	}
	return nil
}

// client returns the http client to use. Client is set by the public package
// before the provider is built; the fallback covers direct internal use.
func (o *Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return internal.CloneDefaultClient()
}

// resolveTokenURL sets the default STS token endpoint with the configured
// universe domain.
func (o *Options) resolveTokenURL() {
	if o.TokenURL != "" {
		return
	} else if o.UniverseDomain != "" {
		o.TokenURL = strings.Replace(defaultTokenURL, universeDomainPlaceholder, o.UniverseDomain, 1)
	} else {
		o.TokenURL = strings.Replace(defaultTokenURL, universeDomainPlaceholder, internal.DefaultUniverseDomain, 1)
	}
}

// NewTokenProvider returns a [auth.TokenProvider]
// configured with the provided options. Each call to Token performs a full
// fetch, exchange and, if configured, impersonation; nothing is cached.
func NewTokenProvider(opts *Options) (auth.TokenProvider, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.resolveTokenURL()
	logger := internallog.New(opts.Logger)
	stp, err := newSubjectTokenProvider(opts)
	if err != nil {
		return nil, err
	}
	client := opts.client()

	tp := &tokenProvider{
		client: client,
		logger: logger,
		opts:   opts,
		stp:    stp,
		scopes: opts.ResolvedScopes(),
	}

	if opts.ServiceAccountImpersonationURL == "" {
		return tp, nil
	}

	// The exchanged token only needs to be able to call IAM; the caller's
	// scopes are requested on the impersonated token.
	tp.scopes = []string{IAMScope}
	imp, err := impersonate.NewTokenProvider(&impersonate.Options{
		Client:    client,
		URL:       opts.ServiceAccountImpersonationURL,
		Scopes:    opts.ResolvedScopes(),
		Delegates: opts.ServiceAccountImpersonationDelegates,
		Tp:        tp,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return imp, nil
}

// SubjectToken reads the raw subject token described by
// opts.CredentialSource, without exchanging it.
func SubjectToken(ctx context.Context, opts *Options) (string, error) {
	if err := validateCredentialSource(opts.CredentialSource); err != nil {
		return "", err
	}
	stp, err := newSubjectTokenProvider(opts)
	if err != nil {
		return "", err
	}
	return stp.subjectToken(ctx)
}

// subjectTokenProvider reads a subject token from one kind of source.
type subjectTokenProvider interface {
	subjectToken(ctx context.Context) (string, error)
	providerType() string
}

// tokenProvider is the provider that handles external credentials. It is used to retrieve Tokens.
type tokenProvider struct {
	client *http.Client
	logger *slog.Logger
	opts   *Options
	stp    subjectTokenProvider
	// scopes requested from the token endpoint.
	scopes []string
}

func (tp *tokenProvider) Token(ctx context.Context) (*auth.Token, error) {
	opts := tp.opts

	subjectToken, err := tp.stp.subjectToken(ctx)
	if err != nil {
		return nil, err
	}

	stsRequest := &stsexchange.TokenRequest{
		Audience:         opts.Audience,
		Scope:            tp.scopes,
		SubjectToken:     subjectToken,
		SubjectTokenType: opts.SubjectTokenType,
	}
	clientAuth := stsexchange.ClientAuthentication{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
	}
	headers := make(http.Header)
	headers.Set(header.GoogAPIClientHeaderKey, header.ExternalAccountToken(tp.stp.providerType(), opts.ServiceAccountImpersonationURL != ""))
	stsResp, err := stsexchange.ExchangeToken(ctx, &stsexchange.Options{
		Client:         tp.client,
		Endpoint:       opts.TokenURL,
		Request:        stsRequest,
		Authentication: clientAuth,
		Headers:        headers,
		Logger:         tp.logger,
	})
	if err != nil {
		return nil, err
	}

	tok := &auth.Token{
		Value:  stsResp.AccessToken,
		Type:   stsResp.TokenType,
		Expiry: Now().Add(time.Duration(stsResp.ExpiresIn) * time.Second),
		Scopes: strings.Fields(stsResp.Scope),
		Metadata: map[string]interface{}{
			"issued_token_type": stsResp.IssuedTokenType,
		},
	}
	if tok.Type == "" {
		tok.Type = internal.TokenTypeBearer
	}
	if len(tok.Scopes) == 0 {
		tok.Scopes = slices.Clone(tp.scopes)
	}
	return tok, nil
}

// newSubjectTokenProvider determines the type of credsfile.CredentialSource needed to create a
// subjectTokenProvider
func newSubjectTokenProvider(o *Options) (subjectTokenProvider, error) {
	logger := internallog.New(o.Logger)
	cs := o.CredentialSource
	if cs.File != "" {
		return &fileSubjectProvider{File: cs.File, Format: cs.Format}, nil
	}
	return &urlSubjectProvider{
		URL:     cs.URL,
		Headers: cs.Headers,
		Format:  cs.Format,
		Client:  o.client(),
		logger:  logger,
	}, nil
}
