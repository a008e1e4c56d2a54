package httpapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/docuindex/engine/internal/app/errors"
	"github.com/docuindex/engine/internal/app/services/apikeys"
	"github.com/docuindex/engine/internal/app/storage"
	"github.com/docuindex/engine/infrastructure/logging"
)

// demoModeWhitelist is the set of mutating-looking paths DEMO_MODE still
// allows, because they only exercise read paths dressed up as a POST.
// Search is the only such path.
var demoModeWhitelist = map[string]bool{
	"/api/v1/search": true,
}

// wrapWithAuth validates the X-API-Key header against apikeys.Service.
// A request without a key passes through when it comes from loopback or
// when requireAuth is false. It is the innermost wrapper, so request
// logging, CORS and demo mode run before it, and a rejected request never
// reaches the handler.
func wrapWithAuth(next http.Handler, keys *apikeys.Service, users storage.UserStore, requireAuth bool, logger *logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		presented := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if presented == "" {
			if !requireAuth || isLoopback(r) {
				next.ServeHTTP(w, r)
				return
			}
			writeAPIError(w, apperrors.New(apperrors.Unauthorized, "X-API-Key header is required"))
			return
		}

		key, err := keys.Authenticate(r.Context(), presented)
		if err != nil {
			writeAPIError(w, err)
			return
		}

		user, found, err := users.GetByAPIKeyID(r.Context(), key.ID)
		if err != nil {
			writeAPIError(w, apperrors.Wrap(apperrors.DatabaseQueryError, "resolve api key user", err))
			return
		}
		if !found {
			user = buildCallerFromKey(key, "viewer", key.Name)
		}
		logger.LogSecurityEvent(r.Context(), "api_key_authenticated", map[string]interface{}{"key_id": key.ID})
		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), user)))
	})
}

// wrapWithDemoMode blocks mutating requests entirely when demoMode is on,
// except for the read-dressed-as-POST whitelist.
func wrapWithDemoMode(next http.Handler, demoMode bool) http.Handler {
	if !demoMode {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isMutating(r.Method) && !demoModeWhitelist[r.URL.Path] {
			writeAPIError(w, apperrors.New(apperrors.DemoModeRestriction, "demo mode blocks mutating requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// wrapWithCORS allows cross-origin requests from configured origins and
// short-circuits preflight requests.
func wrapWithCORS(next http.Handler, origins []string) http.Handler {
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && containsOrigin(origins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "X-API-Key, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// wrapWithRequestLog logs method, path, status, and duration for every
// request, mirroring the teacher's request-logging middleware.
func wrapWithRequestLog(next http.Handler, logger *logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.LogRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func isLoopback(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func containsOrigin(origins []string, origin string) bool {
	for _, o := range origins {
		if o == origin {
			return true
		}
	}
	return false
}
