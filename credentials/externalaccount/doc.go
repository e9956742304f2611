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

// Package externalaccount provides support for creating credentials that
// trade an identity from an external identity provider for a short-lived
// access token, using the OAuth 2.0 token exchange protocol against a
// Security Token Service (STS). This is the mechanism behind workload
// identity federation: a workload running outside the cloud proves who it is
// with an OIDC ID token or SAML assertion it already holds, and receives an
// access token in return.
//
// The token held by the workload is called the subject token. It is read
// from a credential source, which is either a local file kept up to date by
// some other process, or a local HTTP endpoint answering GET requests. In
// both cases the content can be the raw token ("text" format, the default)
// or a JSON object with the token stored under a configured field ("json"
// format).
//
// Optionally the exchanged token can be used to impersonate a service
// account. When ServiceAccountImpersonationURL is set the exchange requests
// only the IAM scope, and the caller's scopes are requested on the
// impersonated token instead.
//
// Credentials are usually loaded from a JSON configuration with
// [NewCredentialsFromFile] or [NewCredentialsFromJSON]:
//
//	{
//	  "type": "external_account",
//	  "audience": "//iam.googleapis.com/projects/$PROJECT_NUMBER/locations/global/workloadIdentityPools/$POOL_ID/providers/$PROVIDER_ID",
//	  "subject_token_type": "urn:ietf:params:oauth:token-type:jwt",
//	  "token_url": "https://sts.googleapis.com/v1/token",
//	  "credential_source": {
//	    "file": "/var/run/secrets/oidc/token"
//	  }
//	}
//
// # Security considerations
//
// Note that this library does not perform any validation on the token_url or
// service_account_impersonation_url fields of the credential configuration.
// Do not use a configuration that you did not generate yourself unless you
// verify that the URL fields point to the endpoints you expect.
package externalaccount
