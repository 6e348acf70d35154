package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

type api struct {
	store      *Store
	log        *slog.Logger
	tokens     *tokenIssuer
	validate   *validator.Validate
	bcryptCost int
	authLimit  *ipLimiter
	now        func() time.Time
}

func newAPI(store *Store, log *slog.Logger, cfg Config) *api {
	return &api{
		store:      store,
		log:        log,
		tokens:     newTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		validate:   newValidator(),
		bcryptCost: cfg.BcryptCost,
		authLimit:  newIPLimiter(cfg.AuthRatePerMinute, cfg.AuthBurst),
		now:        time.Now,
	}
}

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs struct validation and turns the first failure into a 400.
func (a *api) check(v any) error {
	err := a.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errValidation(err.Error())
	}
	return errValidation(fieldMessage(verrs[0]))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

const (
	limiterClients = 10000
	limiterIdleTTL = 15 * time.Minute
)

// ipLimiter keeps one token bucket per client IP. Buckets live in a bounded LRU
// and are dropped after limiterIdleTTL without requests.
type ipLimiter struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *rate.Limiter]
	rate  rate.Limit
	burst int
}

func newIPLimiter(perMinute, burst int) *ipLimiter {
	return newIPLimiterSized(perMinute, burst, limiterClients, limiterIdleTTL)
}

func newIPLimiterSized(perMinute, burst, size int, ttl time.Duration) *ipLimiter {
	l := rate.Inf
	if perMinute > 0 {
		l = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &ipLimiter{
		cache: expirable.NewLRU[string, *rate.Limiter](size, nil, ttl),
		rate:  l,
		burst: burst,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	lim, ok := l.cache.Get(ip)
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
	}
	// re-adding refreshes the idle deadline
	l.cache.Add(ip, lim)
	l.mu.Unlock()
	return lim.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (a *api) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.authLimit.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errValidation("request body is required")
		}
		return errValidation("invalid payload: " + err.Error())
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// fail writes err through the error taxonomy. Internal errors are logged.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	ae := asAppError(err)
	if ae.Status >= http.StatusInternalServerError {
		a.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, ae.Status, ae.Message)
}

// notFoundAs rewrites a bare ErrNotFound into a 404 naming the resource.
func notFoundAs(err error, what string) error {
	if errors.Is(err, ErrNotFound) {
		return errNotFound(what + " not found")
	}
	return err
}

func pathID(r *http.Request, name, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, errValidation("invalid " + what + " id")
	}
	return id, nil
}

type ctxKey int

const userIDKey ctxKey = iota

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireAuth wraps a handler and enforces a valid bearer token.
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := a.tokens.Verify(bearerToken(r))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, uid)))
	}
}

func currentUserID(r *http.Request) uuid.UUID {
	uid, _ := r.Context().Value(userIDKey).(uuid.UUID)
	return uid
}

// authorize resolves the caller's access to ref fresh on every call. No access
// is reported as 404; a role below min as 403 with deny as the message.
func (a *api) authorize(ctx context.Context, ref string, userID uuid.UUID, min Role, deny string) (*Access, error) {
	acc, err := a.store.CheckAccess(ctx, ref, userID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, errNotFound("board not found")
	}
	if !acc.Role.AtLeast(min) {
		return nil, errForbidden(deny)
	}
	return acc, nil
}

func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		dur := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		requestTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		requestDuration.WithLabelValues(r.Method, route).Observe(dur.Seconds())
		log.Info("http", "method", r.Method, "path", r.URL.Path, "status", sw.status, "dur_ms", dur.Milliseconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }
