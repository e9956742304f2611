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

package internal

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadAll(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{name: "empty", size: 0},
		{name: "at limit", size: maxBodySize},
		{name: "over limit", size: maxBodySize + 1, wantErr: ErrBodyTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ReadAll(bytes.NewReader(make([]byte, tt.size)))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadAll() = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if len(b) != tt.size {
				t.Errorf("got %d bytes, want %d", len(b), tt.size)
			}
		})
	}
}

func TestFormatIAMServiceAccountResource(t *testing.T) {
	if got, want := FormatIAMServiceAccountResource("sa@example.iam.gserviceaccount.com"), "projects/-/serviceAccounts/sa@example.iam.gserviceaccount.com"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
