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

package httputil

import (
	"net/http"
	"strings"

	"github.com/matrix-org/util"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/walletkit/walletd/internal/jsonerror"
)

// BasicAuth is used for authorization on /metrics handlers
type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MakeExternalAPI turns a util.JSONRequestHandler function into an http.Handler.
// This is used for APIs that are called from the internet.
func MakeExternalAPI(metricsName string, f func(*http.Request) util.JSONResponse) http.Handler {
	h := util.MakeJSONAPI(util.NewJSONRequestHandler(f))
	withSpan := func(w http.ResponseWriter, req *http.Request) {
		span := opentracing.StartSpan(metricsName)
		defer span.Finish()
		req = req.WithContext(opentracing.ContextWithSpan(req.Context(), span))
		h.ServeHTTP(w, req)
	}

	return promhttp.InstrumentHandlerCounter(
		promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:      metricsName,
				Help:      "Total number of http requests for wallet endpoints",
				Namespace: "walletd",
			},
			[]string{"code"},
		),
		http.HandlerFunc(withSpan),
	)
}

// MakeOperatorAPI is a wrapper around MakeExternalAPI which requires the
// configured operator bearer token before the wrapped handler runs.
func MakeOperatorAPI(metricsName, operatorToken string, f func(*http.Request) util.JSONResponse) http.Handler {
	return MakeExternalAPI(metricsName, func(req *http.Request) util.JSONResponse {
		token, err := BearerToken(req)
		if err != nil {
			return util.JSONResponse{
				Code: http.StatusUnauthorized,
				JSON: jsonerror.MissingToken(err.Error()),
			}
		}
		if token != operatorToken {
			return util.JSONResponse{
				Code: http.StatusUnauthorized,
				JSON: jsonerror.UnknownToken("Unrecognised operator token"),
			}
		}
		return f(req)
	})
}

// MakeHTTPAPI adds Span metrics to the HTML Handler function
// This is used to serve non-JSON payloads alongside JSON error messages.
func MakeHTTPAPI(metricsName string, enableMetrics bool, f func(http.ResponseWriter, *http.Request)) http.Handler {
	withSpan := func(w http.ResponseWriter, req *http.Request) {
		span := opentracing.StartSpan(metricsName)
		defer span.Finish()
		req = req.WithContext(opentracing.ContextWithSpan(req.Context(), span))
		f(w, req)
	}

	if !enableMetrics {
		return http.HandlerFunc(withSpan)
	}

	return promhttp.InstrumentHandlerCounter(
		promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:      metricsName,
				Help:      "Total number of http requests for wallet endpoints",
				Namespace: "walletd",
			},
			[]string{"code"},
		),
		http.HandlerFunc(withSpan),
	)
}

// BearerToken extracts the bearer part of the Authorization header,
// regardless of the auth scheme in front of it. Wallet clients send
// "ApplePass <token>" or "AppleOrder <token>" where everything else
// sends "Bearer <token>".
func BearerToken(req *http.Request) (string, error) {
	authBearer := req.Header.Get("Authorization")
	if authBearer == "" {
		return "", &jsonerror.WalletError{
			ErrCode: "W_MISSING_TOKEN",
			Err:     "Missing Authorization header",
		}
	}
	parts := strings.SplitN(authBearer, " ", 2)
	if len(parts) != 2 {
		return "", &jsonerror.WalletError{
			ErrCode: "W_MISSING_TOKEN",
			Err:     "Invalid Authorization header",
		}
	}
	return parts[1], nil
}

// WrapHandlerInBasicAuth adds basic auth to a handler. Only used for /metrics
func WrapHandlerInBasicAuth(h http.Handler, b BasicAuth) http.HandlerFunc {
	if b.Username == "" || b.Password == "" {
		logrus.Warn("Metrics are exposed without protection. Make sure you set up protection at proxy level.")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		// Serve without authorization if either Username or Password is unset
		if b.Username == "" || b.Password == "" {
			h.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()

		if !ok || user != b.Username || pass != b.Password {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	}
}
