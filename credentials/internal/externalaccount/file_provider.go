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

package externalaccount

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/identitypool/auth"
	"github.com/identitypool/auth/internal/credsfile"
)

type fileSubjectProvider struct {
	File   string
	Format *credsfile.Format
}

func (sp *fileSubjectProvider) subjectToken(context.Context) (string, error) {
	b, err := os.ReadFile(sp.File)
	if errors.Is(err, fs.ErrNotExist) {
		return "", &auth.SubjectTokenError{Op: auth.SubjectTokenOpRead, Source: sp.File, Err: fmt.Errorf("file %q was not found", sp.File)}
	}
	if err != nil {
		return "", &auth.SubjectTokenError{Op: auth.SubjectTokenOpRead, Source: sp.File, Err: fmt.Errorf("failed to read credential file %q: %w", sp.File, err)}
	}
	return parseSubjectToken(b, sp.Format, sp.File)
}

func (sp *fileSubjectProvider) providerType() string {
	return fileProviderType
}
