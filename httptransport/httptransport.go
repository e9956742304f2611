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

// Package httptransport provides functionality for managing HTTP client
// connections to Google Cloud services authorized with
// [github.com/identitypool/auth.Credentials].
package httptransport

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/googleapis/gax-go/v2/internallog"
	"github.com/identitypool/auth"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options used to configure a [net/http.Client] from [NewClient].
type Options struct {
	// DisableTelemetry disables default telemetry (OpenTelemetry). An example
	// reason to do so would be to bind custom telemetry that overrides the
	// defaults.
	DisableTelemetry bool
	// DisableAuthentication specifies that no authentication should be used. It
	// is suitable only for testing and for accessing public resources, like
	// public Google Cloud Storage buckets.
	DisableAuthentication bool
	// Headers are extra HTTP headers that will be appended to every outgoing
	// request.
	Headers http.Header
	// BaseRoundTripper overrides the base transport used for serving requests.
	// If specified ClientCertProvider is ignored.
	BaseRoundTripper http.RoundTripper
	// Credentials used to add Authorization header to all requests. Required
	// unless DisableAuthentication is set.
	Credentials *auth.Credentials
	// Logger is used for debug logging. If provided, logging will be enabled
	// at the loggers configured level. By default logging is disabled unless
	// enabled by setting GOOGLE_SDK_GO_LOGGING_LEVEL in which case a default
	// logger will be used. Optional.
	Logger *slog.Logger
}

func (o *Options) validate() error {
	if o == nil {
		return errors.New("httptransport: opts required to be non-nil")
	}
	if !o.DisableAuthentication && o.Credentials == nil {
		return errors.New("httptransport: Credentials are required unless DisableAuthentication is set")
	}
	return nil
}

// AddAuthorizationMiddleware adds a middleware to the provided client's
// transport that sets the Authorization header with the value produced by the
// provided [github.com/identitypool/auth.Credentials]. An error is returned
// only if client or creds is nil.
func AddAuthorizationMiddleware(client *http.Client, creds *auth.Credentials) error {
	if client == nil || creds == nil {
		return errors.New("httptransport: client and creds must not be nil")
	}
	base := client.Transport
	if base == nil {
		base = defaultBaseTransport()
	}
	client.Transport = &authTransport{
		creds:  creds,
		base:   base,
		logger: internallog.New(nil),
	}
	return nil
}

// NewClient returns a [net/http.Client] that can be used to communicate with a
// Google cloud service, configured with the provided [Options]. It
// automatically appends Authorization headers to all outgoing requests.
func NewClient(opts *Options) (*http.Client, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: newTransport(opts),
	}, nil
}

func newTransport(opts *Options) http.RoundTripper {
	var trans http.RoundTripper = opts.BaseRoundTripper
	if trans == nil {
		trans = defaultBaseTransport()
	}
	trans = &headerTransport{
		base:    trans,
		headers: opts.Headers,
	}
	if !opts.DisableTelemetry {
		trans = otelhttp.NewTransport(trans)
	}
	if !opts.DisableAuthentication {
		trans = &authTransport{
			base:   trans,
			creds:  opts.Credentials,
			logger: internallog.New(opts.Logger),
		}
	}
	return trans
}

func defaultBaseTransport() http.RoundTripper {
	if dt, ok := http.DefaultTransport.(*http.Transport); ok {
		return dt.Clone()
	}
	// Directly reuse the DefaultTransport if the application has replaced it
	// with an implementation of RoundTripper other than http.Transport.
	return http.DefaultTransport
}
