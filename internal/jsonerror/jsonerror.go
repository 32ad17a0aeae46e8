// Copyright 2024 The walletd Authors
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

package jsonerror

import (
	"fmt"

	"github.com/matrix-org/util"
)

// WalletError is the JSON error body returned by every endpoint that fails,
// including the binary ones, which switch to a JSON body on failure.
type WalletError struct {
	ErrCode string `json:"errcode"`
	Err     string `json:"error"`
}

func (e *WalletError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrCode, e.Err)
}

// InternalServerError returns a 500 Internal Server Error response.
func InternalServerError() util.JSONResponse {
	return util.JSONResponse{
		Code: 500,
		JSON: Unknown("Internal Server Error"),
	}
}

// Unknown is an unexpected error
func Unknown(msg string) *WalletError {
	return &WalletError{"W_UNKNOWN", msg}
}

// Forbidden is an error when the client tries to access a resource
// they are not allowed to access.
func Forbidden(msg string) *WalletError {
	return &WalletError{"W_FORBIDDEN", msg}
}

// BadJSON is an error when the client supplies malformed JSON.
func BadJSON(msg string) *WalletError {
	return &WalletError{"W_BAD_JSON", msg}
}

// NotJSON is an error when the client supplies something that is not JSON
// to a JSON endpoint.
func NotJSON(msg string) *WalletError {
	return &WalletError{"W_NOT_JSON", msg}
}

// NotFound is an error when the client tries to access an unknown resource.
func NotFound(msg string) *WalletError {
	return &WalletError{"W_NOT_FOUND", msg}
}

// InvalidParam is an error when a path or query parameter does not parse.
func InvalidParam(msg string) *WalletError {
	return &WalletError{"W_INVALID_PARAM", msg}
}

// MissingToken is an error when the client tries to access a resource which
// requires authentication without supplying credentials.
func MissingToken(msg string) *WalletError {
	return &WalletError{"W_MISSING_TOKEN", msg}
}

// UnknownToken is an error when the client tries to access a resource with a
// token that does not match the one the resource was issued with.
func UnknownToken(msg string) *WalletError {
	return &WalletError{"W_UNKNOWN_TOKEN", msg}
}
