package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/justinas/alice"
	"github.com/lukman83/autopost/config"
	"github.com/lukman83/autopost/internal/logging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type contextKey string

const contextKeySubject contextKey = "subject"

// Subject returns the authenticated caller, "api-key" for key auth or the JWT
// subject.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(contextKeySubject).(string)
	return s
}

var publicPaths = map[string]bool{
	"/health": true,
}

func chain(cfg config.HTTP) alice.Chain {
	return alice.New(
		recoverPanic(),
		logRequests(),
		authenticate(cfg),
	)
}

func recoverPanic() alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logging.FromContext(r.Context()).WithFields(logrus.Fields{
						"panic":  rec,
						"method": r.Method,
						"path":   r.URL.Path,
						"stack":  string(debug.Stack()),
					}).Error("handler panicked")
					writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests() alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := logging.NewRunID()
			r = r.WithContext(logging.WithRun(r.Context(), requestID))
			w.Header().Set("X-Request-Id", requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)

			log := logging.FromContext(r.Context()).WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			switch {
			case rec.status >= 500:
				log.Error("request failed")
			case rec.status >= 400:
				log.Warn("request rejected")
			default:
				log.Info("request served")
			}
		})
	}
}

// authenticate accepts the configured API key (X-API-Key or Bearer) or an
// HS256 JWT signed with the configured secret. With neither configured every
// request passes.
func authenticate(cfg config.HTTP) alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || (cfg.APIKey == "" && cfg.JWTSecret == "") {
				next.ServeHTTP(w, r)
				return
			}

			subject, err := verify(cfg, r)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="autopost"`)
				writeError(w, http.StatusUnauthorized, codeUnauthorized, err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), contextKeySubject, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func verify(cfg config.HTTP, r *http.Request) (string, error) {
	if key := r.Header.Get("X-API-Key"); key != "" {
		if cfg.APIKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(cfg.APIKey)) == 1 {
			return "api-key", nil
		}
		return "", errors.New("invalid api key")
	}

	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || token == "" {
		return "", errors.New("bearer token is required")
	}
	if cfg.APIKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cfg.APIKey)) == 1 {
		return "api-key", nil
	}
	if cfg.JWTSecret == "" {
		return "", errors.New("invalid token")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// IssueToken signs an HS256 token for subject, valid for ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.Wrap(config.ErrInvalidConfig, "JWT_SECRET is required to issue tokens")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return s, errors.Wrap(err, "sign token")
}
