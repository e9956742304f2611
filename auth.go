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

// Package auth provides the token lifecycle shared by every credential kind
// in this module: a [Credentials] value owns the current [Token], knows when
// it is valid or expired, and replaces it wholesale on [Credentials.Refresh]
// using an injected [TokenProvider] that performs a single exchange.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/googleapis/gax-go/v2/internallog"
	"github.com/identitypool/auth/internal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/identitypool/auth"

var (
	// for testing
	timeNow = time.Now
)

// TokenProvider specifies an interface for anything that can return a token.
type TokenProvider interface {
	// Token returns a Token or an error.
	// The Token returned must be safe to use
	// concurrently.
	// The returned Token must not be modified.
	// The context provided must be sent along to any requests that are made in
	// the implementing code.
	Token(context.Context) (*Token, error)
}

// TokenProviderFunc adapts an ordinary function to a [TokenProvider].
type TokenProviderFunc func(context.Context) (*Token, error)

// Token calls f(ctx).
func (f TokenProviderFunc) Token(ctx context.Context) (*Token, error) {
	return f(ctx)
}

// Token holds the credential token used to authorized requests. All fields are
// considered read-only.
type Token struct {
	// Value is the token used to authorize requests. It is usually an access
	// token.
	Value string
	// Type is the type of token Value is. If uninitialized, it should be
	// assumed to be a "Bearer" token.
	Type string
	// Expiry is the time the token is set to expire.
	Expiry time.Time
	// Scopes are the scopes granted to the token, when known.
	Scopes []string
	// Metadata may include, but is not limited to, the body of the token
	// response returned by the server.
	Metadata map[string]interface{}
}

// IsValid reports that a [Token] is non-nil, has a [Token.Value], and has not
// expired. A token is considered expired once [Token.Expiry] is at or before
// the current time.
func (t *Token) IsValid() bool {
	return t.isValidWithEarlyExpiry(0)
}

func (t *Token) isValidWithEarlyExpiry(earlyExpiry time.Duration) bool {
	if t == nil || t.Value == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return !t.isExpired(earlyExpiry)
}

func (t *Token) isExpired(earlyExpiry time.Duration) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return !timeNow().Before(t.Expiry.Round(0).Add(-earlyExpiry))
}

// CredentialsOptions are used to configure [Credentials].
type CredentialsOptions struct {
	// TokenProvider performs one full token exchange each time it is called.
	// Its results are not cached by the provider itself. Required.
	TokenProvider TokenProvider
	// ExpireEarly is subtracted from a token's expiry when deciding whether it
	// is still valid, to leave room for clock skew. Defaults to zero, meaning
	// a token expires exactly at its expiry instant. Optional.
	ExpireEarly time.Duration
	// QuotaProjectID is passed through to transports, which set it as the
	// X-Goog-User-Project header. If empty, the GOOGLE_CLOUD_QUOTA_PROJECT
	// environment variable is used. Optional.
	QuotaProjectID string
	// UniverseDomain is the default service domain for a given Cloud universe.
	// If empty, the GOOGLE_CLOUD_UNIVERSE_DOMAIN environment variable is used.
	// Optional.
	UniverseDomain string
	// Logger is used for debug logging. If not provided, logging is
	// controlled by the GOOGLE_SDK_GO_LOGGING_LEVEL environment variable.
	// Optional.
	Logger *slog.Logger
}

// Credentials owns the current [Token] for a credential and exposes the
// refresh / valid / expired lifecycle. States are: no token (initial), valid,
// and expired. Refresh may be called from any state and always replaces the
// stored token with a freshly exchanged one.
//
// Refresh does not serialize concurrent callers; two concurrent calls both
// perform a network exchange and the last one to finish wins. Readers never
// observe a partially built token. Use [Credentials.Token] to get
// check-then-refresh under a lock.
type Credentials struct {
	tp             TokenProvider
	expireEarly    time.Duration
	quotaProjectID string
	universeDomain string
	logger         *slog.Logger

	token atomic.Pointer[Token]

	// mu serializes Token, not Refresh.
	mu sync.Mutex
}

// NewCredentials returns new [Credentials] from the provided options.
func NewCredentials(opts *CredentialsOptions) *Credentials {
	return &Credentials{
		tp:             opts.TokenProvider,
		expireEarly:    opts.ExpireEarly,
		quotaProjectID: resolveEnv(opts.QuotaProjectID, internal.QuotaProjectEnvVar),
		universeDomain: resolveEnv(opts.UniverseDomain, internal.UniverseDomainEnvVar),
		logger:         internallog.New(opts.Logger),
	}
}

// resolveEnv returns v, or the value of the environment variable key when v
// is empty. The environment is read once, at construction.
func resolveEnv(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

// Refresh fetches a new token and publishes it. On failure the previously
// stored token, if any, is left untouched and a [*RefreshError] wrapping the
// cause is returned.
func (c *Credentials) Refresh(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "auth.Credentials.Refresh", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	if c.tp == nil {
		err := &RefreshError{Err: errors.New("auth: no token provider configured")}
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	tok, err := c.tp.Token(ctx)
	if err == nil && (tok == nil || tok.Value == "") {
		err = errors.New("auth: token provider returned an empty token")
	}
	if err != nil {
		c.logger.DebugContext(ctx, "token refresh failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &RefreshError{Err: err}
	}
	c.token.Store(tok)
	c.logger.DebugContext(ctx, "token refreshed", "expiry", tok.Expiry)
	return nil
}

// Valid reports whether a token is stored and has not expired.
func (c *Credentials) Valid() bool {
	return c.token.Load().isValidWithEarlyExpiry(c.expireEarly)
}

// Expired reports whether a token is stored and its expiry has passed. A
// Credentials that has never been refreshed is not expired, it simply has no
// token.
func (c *Credentials) Expired() bool {
	t := c.token.Load()
	if t == nil {
		return false
	}
	return t.isExpired(c.expireEarly)
}

// CachedToken returns the most recently published token, or nil if Refresh
// has not yet succeeded. The returned value must not be modified.
func (c *Credentials) CachedToken() *Token {
	return c.token.Load()
}

// Token returns a valid token, refreshing first if the stored one is missing
// or expired. Concurrent calls are serialized so that at most one refresh is
// in flight per Credentials through this method.
func (c *Credentials) Token(ctx context.Context) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Valid() {
		return c.token.Load(), nil
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c.token.Load(), nil
}

// QuotaProjectID returns the quota project the credentials were configured
// with, or an empty string.
func (c *Credentials) QuotaProjectID() string {
	return c.quotaProjectID
}

// UniverseDomain returns the configured universe domain, defaulting to
// "googleapis.com".
func (c *Credentials) UniverseDomain() string {
	if c.universeDomain == "" {
		return internal.DefaultUniverseDomain
	}
	return c.universeDomain
}
