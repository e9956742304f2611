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

package stsexchange

import (
	"encoding/base64"
	"net/http"
	"net/url"
)

// ClientAuthentication represents an OAuth client ID and secret sent to the
// token endpoint with HTTP basic auth as stated in rfc6749#2.3.1.
type ClientAuthentication struct {
	ClientID     string
	ClientSecret string
}

// InjectAuthentication is used to add authentication to a Secure Token Service
// exchange request. It sets the Authorization header and leaves the form
// values alone. Nothing is added unless both ClientID and ClientSecret are
// set.
func (c *ClientAuthentication) InjectAuthentication(values url.Values, headers http.Header) {
	if c.ClientID == "" || c.ClientSecret == "" || values == nil || headers == nil {
		return
	}
	// rfc7617#2
	plainHeader := c.ClientID + ":" + c.ClientSecret
	headers.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(plainHeader)))
}
