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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/identitypool/auth"
	"github.com/identitypool/auth/internal/credsfile"
)

const (
	fileTypeText = "text"
	fileTypeJSON = "json"

	fileProviderType = "file"
	urlProviderType  = "url"
)

var errMissingSubjectToken = errors.New("missing subject_token in the credential_source file")

// parseSubjectToken extracts the subject token from the raw content of a
// source according to format. It is shared by every source kind so that the
// same content fails the same way wherever it was read from.
func parseSubjectToken(content []byte, format *credsfile.Format, source string) (string, error) {
	typ := fileTypeText
	if format != nil && format.Type != "" {
		typ = format.Type
	}
	switch typ {
	case fileTypeText:
		if len(content) == 0 {
			return "", &auth.SubjectTokenError{Op: auth.SubjectTokenOpParse, Source: source, Err: errMissingSubjectToken}
		}
		return string(content), nil
	case fileTypeJSON:
		field := format.SubjectTokenFieldName
		parseErr := &auth.SubjectTokenError{
			Op:        auth.SubjectTokenOpParse,
			Source:    source,
			FieldName: field,
			Err:       fmt.Errorf("unable to parse subject_token from JSON file %q using key %q", source, field),
		}
		var m map[string]interface{}
		if err := json.Unmarshal(content, &m); err != nil {
			return "", parseErr
		}
		val, ok := m[field]
		if !ok {
			return "", parseErr
		}
		token, ok := val.(string)
		if !ok {
			return "", parseErr
		}
		if token == "" {
			return "", &auth.SubjectTokenError{Op: auth.SubjectTokenOpParse, Source: source, FieldName: field, Err: errMissingSubjectToken}
		}
		return token, nil
	default:
		return "", &auth.SubjectTokenError{Op: auth.SubjectTokenOpParse, Source: source, Err: fmt.Errorf("invalid credential_source format %q", typ)}
	}
}
