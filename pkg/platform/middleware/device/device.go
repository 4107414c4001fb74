// Package device captures the device fingerprint clients send alongside
// behavioral telemetry.
package device

import (
	"net/http"

	"zenid/pkg/requestcontext"
)

// FingerprintHeader is the header carrying the client-computed fingerprint.
const FingerprintHeader = "X-Device-Fingerprint"

// Fingerprint stores the device fingerprint header, when present, in the
// request context. Absence is not an error; sessions without telemetry score
// with a neutral behavioral factor.
func Fingerprint(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp := r.Header.Get(FingerprintHeader)
		if fp == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := requestcontext.WithDeviceFingerprint(r.Context(), fp)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
