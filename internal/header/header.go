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

// Package header builds the x-goog-api-client header sent to the token
// endpoint.
package header

import (
	"fmt"
	"runtime"
	"strings"
	"unicode"

	"github.com/identitypool/auth/internal"
)

const (
	// GoogAPIClientHeaderKey is the header key "x-goog-api-client".
	GoogAPIClientHeaderKey = "x-goog-api-client"

	// versionUnknown is only used when the runtime version cannot be determined.
	versionUnknown = "UNKNOWN"
)

// version is a package internal global variable for testing purposes.
var version = runtime.Version

// GoVersion returns the Go runtime version without whitespace, suitable for
// a header value. It returns "UNKNOWN" when the version cannot be parsed.
func GoVersion() string {
	const develPrefix = "devel +"

	s := version()
	if strings.HasPrefix(s, develPrefix) {
		s = s[len(develPrefix):]
		if p := strings.IndexFunc(s, unicode.IsSpace); p >= 0 {
			s = s[:p]
		}
		return s
	} else if p := strings.IndexFunc(s, unicode.IsSpace); p >= 0 {
		s = s[:p]
	}

	notSemverRune := func(r rune) bool {
		return !strings.ContainsRune("0123456789.", r)
	}

	if !strings.HasPrefix(s, "go1") {
		return versionUnknown
	}
	s = s[2:]
	var prerelease string
	if p := strings.IndexFunc(s, notSemverRune); p >= 0 {
		s, prerelease = s[:p], s[p:]
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	} else if strings.Count(s, ".") < 2 {
		s += ".0"
	}
	if prerelease != "" {
		if !strings.HasPrefix(prerelease, "-") {
			prerelease = "-" + prerelease
		}
		s += prerelease
	}
	return s
}

// ExternalAccountToken returns the x-goog-api-client value for a token
// exchange made by external account credentials, for example
// "gl-go/1.23.0 auth/0.1.0 google-byoid-sdk source/file sa-impersonation/false config-lifetime/false".
// source is the credential source kind, "file" or "url". The impersonation
// lifetime is never configurable, so config-lifetime is always false.
func ExternalAccountToken(source string, impersonation bool) string {
	return fmt.Sprintf("gl-go/%s auth/%s google-byoid-sdk source/%s sa-impersonation/%t config-lifetime/%t",
		GoVersion(), internal.Version, source, impersonation, false)
}
