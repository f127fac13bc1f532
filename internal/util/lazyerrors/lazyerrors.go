// Copyright 2021 FerretDB Inc.
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

// Package lazyerrors provides error wrapping that records the caller location.
//
// Use it for errors that should never reach users in normal operation;
// errors that are part of an interface contract have their own types.
package lazyerrors

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// withPC wraps an error with a program counter of the code that created it.
type withPC struct {
	err error
	pc  uintptr
}

// Error implements error interface.
func (e withPC) Error() string {
	if e.pc == 0 {
		return e.err.Error()
	}

	f, _ := runtime.CallersFrames([]uintptr{e.pc}).Next()
	if f.File == "" {
		return "[unknown] " + e.err.Error()
	}

	loc := filepath.Base(f.File) + ":" + strconv.Itoa(f.Line)
	if f.Function != "" {
		loc += " " + f.Function[strings.LastIndex(f.Function, "/")+1:]
	}

	return "[" + loc + "] " + e.err.Error()
}

// Unwrap returns the wrapped error.
func (e withPC) Unwrap() error {
	return e.err
}

// callerPC returns the program counter of the caller of the exported function.
func callerPC() uintptr {
	pcs := make([]uintptr, 1)

	// skip runtime.Callers, callerPC, and exported function
	if runtime.Callers(3, pcs) == 0 {
		return 0
	}

	return pcs[0]
}

// New returns a new error with the given text and caller location.
func New(s string) error {
	return withPC{
		err: errors.New(s),
		pc:  callerPC(),
	}
}

// Error wraps err with the caller location. Err must not be nil.
func Error(err error) error {
	if err == nil {
		panic("lazyerrors.Error: err is nil")
	}

	return withPC{
		err: err,
		pc:  callerPC(),
	}
}

// Errorf is fmt.Errorf with the caller location.
func Errorf(format string, a ...any) error {
	return withPC{
		err: fmt.Errorf(format, a...),
		pc:  callerPC(),
	}
}

// UnwrapAll returns the innermost error of the chain.
func UnwrapAll(err error) error {
	for err != nil {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}

		err = next
	}

	return nil
}
