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

package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error is a error associated with retrieving a [Token]. It can hold useful
// additional details for debugging.
type Error struct {
	// Response is the HTTP response associated with error. The body will always
	// be already closed and consumed.
	Response *http.Response
	// Body is the HTTP response body.
	Body []byte
	// Err is the underlying wrapped error.
	Err error
}

// oauthError is the error body defined in rfc6749#5.2.
type oauthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
	URI         string `json:"error_uri"`
}

func (e *Error) Error() string {
	var oe oauthError
	if len(e.Body) > 0 && json.Unmarshal(e.Body, &oe) == nil && oe.Code != "" {
		s := fmt.Sprintf("auth: %q", oe.Code)
		if oe.Description != "" {
			s += fmt.Sprintf(" %q", oe.Description)
		}
		if oe.URI != "" {
			s += fmt.Sprintf(" %q", oe.URI)
		}
		return s
	}
	if e.Response == nil {
		if e.Err != nil {
			return fmt.Sprintf("auth: cannot fetch token: %v", e.Err)
		}
		return "auth: cannot fetch token"
	}
	return fmt.Sprintf("auth: cannot fetch token: %v\nResponse: %s", e.Response.StatusCode, e.Body)
}

// Temporary returns true if the error is considered temporary and may be able
// to be retried.
func (e *Error) Temporary() bool {
	if e.Response == nil {
		return false
	}
	sc := e.Response.StatusCode
	return sc == 500 || sc == 503 || sc == 408 || sc == 429
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExchangeError is returned when the token exchange endpoint rejects a
// request or answers with a body that cannot be used. Err is an [*Error] for
// non-2xx responses.
type ExchangeError struct {
	// URL is the token endpoint that was called.
	URL string
	Err error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("auth: token exchange with %s failed: %v", e.URL, e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// ImpersonationError is returned when the service account impersonation
// endpoint rejects a request or answers with a body that cannot be used. Err
// is an [*Error] for non-2xx responses.
type ImpersonationError struct {
	// URL is the impersonation endpoint that was called.
	URL string
	Err error
}

func (e *ImpersonationError) Error() string {
	return fmt.Sprintf("auth: service account impersonation with %s failed: %v", e.URL, e.Err)
}

func (e *ImpersonationError) Unwrap() error {
	return e.Err
}

// RefreshError is the single error surfaced by [Credentials.Refresh],
// whichever step of the refresh failed. Use errors.As to reach the cause.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("auth: unable to refresh token: %v", e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// ConfigError reports an invalid credential configuration. It is returned by
// constructors, never by [Credentials.Refresh].
type ConfigError struct {
	// Field is the offending configuration key, when there is one.
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return "auth: " + e.Msg
}

// Operations recorded in [SubjectTokenError.Op].
const (
	// SubjectTokenOpRead is a failure reading a local credential file.
	SubjectTokenOpRead = "read"
	// SubjectTokenOpFetch is a transport failure or non-2xx answer from a
	// credential URL.
	SubjectTokenOpFetch = "fetch"
	// SubjectTokenOpParse is a failure extracting the token from the raw
	// content, including an empty token.
	SubjectTokenOpParse = "parse"
)

// SubjectTokenError is returned when the subject token cannot be obtained
// from its credential source.
type SubjectTokenError struct {
	// Op is one of SubjectTokenOpRead, SubjectTokenOpFetch or
	// SubjectTokenOpParse.
	Op string
	// Source is the file path or URL the token was read from.
	Source string
	// FieldName is the JSON field looked up, for json formatted sources.
	FieldName string
	// StatusCode is the HTTP status of a URL source, when one was received.
	StatusCode int
	// Body is the response body of a URL source that answered with a non-2xx
	// status. It is not part of the error message.
	Body []byte
	Err  error
}

func (e *SubjectTokenError) Error() string {
	return "auth: " + e.Err.Error()
}

func (e *SubjectTokenError) Unwrap() error {
	return e.Err
}
