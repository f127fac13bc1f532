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

package ephemeral

import (
	"errors"

	"github.com/FerretDB/EphemeralDB/internal/backends"
	"github.com/FerretDB/EphemeralDB/internal/types"
	"github.com/FerretDB/EphemeralDB/internal/util/lazyerrors"
)

// errNotConnected is returned by all operations outside of a connection's lifetime.
var errNotConnected = backends.NewError(backends.ErrorCodeNotConnected, errors.New("connection is not initiated"))

// internalError converts errors from types package to backend errors.
//
// Path conflicts are reported as internal consistency errors;
// anything else is returned as an opaque error.
func internalError(err error) error {
	if errors.Is(err, types.ErrPathConflict) {
		return backends.NewError(backends.ErrorCodeInternalConsistency, lazyerrors.Error(err))
	}

	return lazyerrors.Error(err)
}
