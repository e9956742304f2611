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

// Package grpctransport provides gRPC dial options and per-RPC credentials
// backed by [github.com/identitypool/auth.Credentials].
package grpctransport

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"

	"github.com/googleapis/gax-go/v2/internallog"
	"github.com/identitypool/auth"
	"github.com/identitypool/auth/internal/transport/headers"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Options used to configure the [google.golang.org/grpc.DialOption]s returned
// by [DialOptions].
type Options struct {
	// DisableTelemetry disables default telemetry (OpenTelemetry). An example
	// reason to do so would be to bind custom telemetry that overrides the
	// defaults.
	DisableTelemetry bool
	// DisableAuthentication specifies that no authentication should be used.
	DisableAuthentication bool
	// Metadata is extra gRPC metadata that will be appended to every outgoing
	// request. Keys set here take precedence over the quota project of the
	// credentials.
	Metadata map[string]string
	// Credentials used to add authorization metadata to all requests.
	// Required unless DisableAuthentication is set.
	Credentials *auth.Credentials
	// Insecure dials without transport security. Credentials are then sent
	// in plaintext, which is only suitable for local testing.
	Insecure bool
	// GRPCDialOpts are dial options appended after the ones built here.
	// Optional.
	GRPCDialOpts []grpc.DialOption
	// Logger is used for debug logging. Optional.
	Logger *slog.Logger
}

func (o *Options) validate() error {
	if o == nil {
		return errors.New("grpctransport: opts required to be non-nil")
	}
	if !o.DisableAuthentication && o.Credentials == nil {
		return errors.New("grpctransport: Credentials are required unless DisableAuthentication is set")
	}
	return nil
}

// DialOptions returns the dial options needed to reach a Google Cloud
// service over gRPC with the configured credentials.
func DialOptions(opts *Options) ([]grpc.DialOption, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	var dialOpts []grpc.DialOption
	if opts.Insecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	}
	if !opts.DisableAuthentication {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(&grpcCredentialsProvider{
			creds:    opts.Credentials,
			secure:   !opts.Insecure,
			metadata: opts.Metadata,
			logger:   internallog.New(opts.Logger),
		}))
	}
	if !opts.DisableTelemetry {
		dialOpts = append(dialOpts, grpc.WithStatsHandler(otelgrpc.NewClientHandler()))
	}
	return append(dialOpts, opts.GRPCDialOpts...), nil
}

// NewClient creates a [google.golang.org/grpc.ClientConn] to target using
// [DialOptions].
func NewClient(target string, opts *Options) (*grpc.ClientConn, error) {
	dialOpts, err := DialOptions(opts)
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(target, dialOpts...)
}

// NewPerRPCCredentials adapts creds into
// [google.golang.org/grpc/credentials.PerRPCCredentials] that require
// transport security.
func NewPerRPCCredentials(creds *auth.Credentials) credentials.PerRPCCredentials {
	return &grpcCredentialsProvider{
		creds:  creds,
		secure: true,
		logger: internallog.New(nil),
	}
}

// grpcCredentialsProvider satisfies
// https://pkg.go.dev/google.golang.org/grpc/credentials#PerRPCCredentials.
type grpcCredentialsProvider struct {
	creds  *auth.Credentials
	secure bool
	// Additional metadata attached as headers.
	metadata map[string]string
	logger   *slog.Logger
}

func (c *grpcCredentialsProvider) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	token, err := c.creds.Token(ctx)
	if err != nil {
		c.logger.DebugContext(ctx, "unable to authorize rpc", "error", err)
		return nil, err
	}
	metadata := make(map[string]string, len(c.metadata)+2)
	headers.SetAuthMetadata(token, metadata)
	for k, v := range c.metadata {
		metadata[k] = v
	}
	headers.SetQuotaProjectMetadata(c.creds.QuotaProjectID(), metadata)
	return metadata, nil
}

func (c *grpcCredentialsProvider) RequireTransportSecurity() bool {
	return c.secure
}
