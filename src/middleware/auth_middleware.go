package middleware

import (
	"context"
	"fmt"
	"ledger-server/src/logger"
	"ledger-server/src/models"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	HeaderScopeBusiness = "X-Scope-Business"
	HeaderScopeCompany  = "X-Scope-Company"
)

type contextKey string

const (
	scopeKey contextKey = "scope"
	adminKey contextKey = "admin"
)

// Claims is the session token payload.
type Claims struct {
	UserID     string   `json:"user_id"`
	CompanyIDs []string `json:"company_ids,omitempty"`
	Admin      bool     `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// NewToken signs an HS256 session token for userID.
func NewToken(secret []byte, userID string, companyIDs []string, ttl time.Duration) (string, error) {
	return SignClaims(secret, Claims{UserID: userID, CompanyIDs: companyIDs}, ttl)
}

// SignClaims fills the registered claims and signs c with HS256.
func SignClaims(secret []byte, c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:     c.UserID,
		CompanyIDs: c.CompanyIDs,
		Admin:      c.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseTokenFromRequest extracts and validates the bearer token, returning its claims if valid.
func ParseTokenFromRequest(r *http.Request, secret []byte) (*Claims, error) {
	tokenString := r.Header.Get("Authorization")
	if tokenString == "" {
		return nil, fmt.Errorf("missing token")
	}
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid signing method")
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// ScopeFromClaims picks the active tenant. A company header implies a
// business scope and must name one of the token's companies.
func ScopeFromClaims(claims *Claims, r *http.Request) (models.Scope, error) {
	scope := models.Scope{UserID: claims.UserID}
	if v := r.Header.Get(HeaderScopeBusiness); v != "" {
		business, err := strconv.ParseBool(v)
		if err != nil {
			return scope, fmt.Errorf("invalid %s header", HeaderScopeBusiness)
		}
		scope.IsBusiness = business
	}
	if company := r.Header.Get(HeaderScopeCompany); company != "" {
		if !slices.Contains(claims.CompanyIDs, company) {
			return scope, fmt.Errorf("company %s not granted", company)
		}
		scope.IsBusiness = true
		scope.CompanyID = &company
	}
	return scope, nil
}

func JWTAuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := ParseTokenFromRequest(r, secret)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, err.Error())
				return
			}
			scope, err := ScopeFromClaims(claims, r)
			if err != nil {
				WriteError(w, http.StatusForbidden, err.Error())
				return
			}

			ctx := WithScope(r.Context(), scope)
			ctx = context.WithValue(ctx, adminKey, claims.Admin)
			log := logger.FromContext(ctx).With().Str("scope", scope.String()).Logger()
			ctx = logger.WithContext(ctx, log)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithScope(ctx context.Context, scope models.Scope) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// ScopeFromContext returns the scope set by JWTAuthMiddleware. The zero
// scope is rejected by the engine as unauthenticated.
func ScopeFromContext(ctx context.Context) models.Scope {
	scope, _ := ctx.Value(scopeKey).(models.Scope)
	return scope
}

func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin, ok := r.Context().Value(adminKey).(bool)
		if !ok || !admin {
			WriteError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
