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

package externalaccount_test

import (
	"context"
	"log"

	"github.com/identitypool/auth/credentials/externalaccount"
)

func ExampleNewCredentials() {
	creds, err := externalaccount.NewCredentials(&externalaccount.Options{
		Audience:         "//iam.googleapis.com/projects/123456/locations/global/workloadIdentityPools/POOL_ID/providers/PROVIDER_ID",
		SubjectTokenType: "urn:ietf:params:oauth:token-type:jwt",
		CredentialSource: &externalaccount.CredentialSource{
			File: "/var/run/secrets/oidc/token",
		},
		Scopes: []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		log.Fatal(err)
	}
	tok, err := creds.Token(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	_ = tok
}

func ExampleNewCredentialsFromFile() {
	creds, err := externalaccount.NewCredentialsFromFile("/path/to/config.json", &externalaccount.LoadOptions{
		Scopes: []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		log.Fatal(err)
	}
	if err := creds.Refresh(context.Background()); err != nil {
		log.Fatal(err)
	}
	log.Println(creds.Valid())
}
