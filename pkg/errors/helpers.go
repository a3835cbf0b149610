// Copyright 2025 Tom Barlow
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

package errors

import (
	"errors"
	"fmt"
)

// Wrap adds context to err without discarding it. Returns nil if err is nil,
// so call sites can wrap unconditionally inside an early-return chain.
//
// Usage:
//
//	if err := store.Save(w); err != nil {
//	    return errors.Wrap(err, "saving workflow")
//	}
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
//
// Usage:
//
//	if err := adapter.Segment(ctx, trace); err != nil {
//	    return errors.Wrapf(err, "segmenting capture %s", trace.ID)
//	}
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target. Convenience
// wrapper around the standard library's errors.Is.
//
// Usage:
//
//	if errors.Is(err, ErrWorkflowNotFound) {
//	    // handle missing workflow
//	}
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree matching target's type and, if
// found, sets target to that value. Convenience wrapper around the standard
// library's errors.As.
//
// Usage:
//
//	var oracleErr *OracleError
//	if errors.As(err, &oracleErr) {
//	    log.Printf("oracle call failed: provider=%s", oracleErr.Provider)
//	}
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err,
// if err's type contains an Unwrap method returning error.
// This is a convenience wrapper around errors.Unwrap from the standard library.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// New creates a new error with the given message.
// This is a convenience wrapper around errors.New from the standard library.
func New(message string) error {
	return errors.New(message)
}
