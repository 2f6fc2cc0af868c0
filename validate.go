// Copyright The Statline Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package statline // import "github.com/statline/go-statline"

import (
	"fmt"
	"strings"
)

// ValidationError reports one or more reasons an entry, field, or
// value violates the data model or a wire format's rules. It is
// distinct from I/O errors; consumers classify with errors.As.
type ValidationError struct {
	reasons []string
}

var _ error = (*ValidationError)(nil)

// Invalid returns a single-reason validation error.
func Invalid(reason string) *ValidationError {
	return &ValidationError{reasons: []string{reason}}
}

// Invalidf returns a single-reason validation error built with
// fmt.Sprintf.
func Invalidf(format string, args ...interface{}) *ValidationError {
	return Invalid(fmt.Sprintf(format, args...))
}

func (e *ValidationError) Error() string {
	return strings.Join(e.reasons, "; ")
}

// Reasons returns the individual reasons. The slice is shared; do not
// modify it.
func (e *ValidationError) Reasons() []string { return e.reasons }

// ForField returns a copy of the error with every reason prefixed by
// the field name it applies to.
func (e *ValidationError) ForField(name string) *ValidationError {
	out := &ValidationError{reasons: make([]string, len(e.reasons))}
	for i, r := range e.reasons {
		out.reasons[i] = fmt.Sprintf("for `%s`: %s", name, r)
	}
	return out
}

// ValidationErrorBuilder accumulates reasons while a consumer walks an
// entry, so one pass can report every violation at once.
type ValidationErrorBuilder struct {
	reasons []string
}

// Invalid records one reason.
func (b *ValidationErrorBuilder) Invalid(reason string) {
	b.reasons = append(b.reasons, reason)
}

// Invalidf records one reason built with fmt.Sprintf.
func (b *ValidationErrorBuilder) Invalidf(format string, args ...interface{}) {
	b.Invalid(fmt.Sprintf(format, args...))
}

// Extend records every reason carried by err.
func (b *ValidationErrorBuilder) Extend(err *ValidationError) {
	if err != nil {
		b.reasons = append(b.reasons, err.reasons...)
	}
}

// Empty reports whether no reasons were recorded.
func (b *ValidationErrorBuilder) Empty() bool { return len(b.reasons) == 0 }

// Err returns the accumulated error, or nil when nothing was recorded.
func (b *ValidationErrorBuilder) Err() error {
	if b.Empty() {
		return nil
	}
	return &ValidationError{reasons: b.reasons}
}
