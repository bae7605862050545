// Package auth signs staff into the console with an identity provider
// token and keeps them signed in through a cookie session or a bearer JWT.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mechanicbano/admin/internal/audit"
	"github.com/mechanicbano/admin/internal/config"
	"github.com/mechanicbano/admin/internal/logging"
	"github.com/mechanicbano/admin/internal/middleware"
)

const (
	SessionName = "mechanicbano-admin"
	sessionKey  = "admin_email"
	HomeRoute   = "/"
)

var (
	ErrNotAllowed    = errors.New("account is not allowed to use the console")
	ErrInvalidToken  = errors.New("invalid identity token")
	ErrNoProviderKey = errors.New("identity provider secret is not configured")
)

// ProviderClaims are the claims the identity provider signs into its ID token
type ProviderClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks identity provider tokens against the admin allow-list
type Verifier struct {
	secret  []byte
	options []jwt.ParserOption
	allowed map[string]struct{}
}

// NewVerifier creates a verifier from auth settings. It fails without a
// provider secret, since an empty HMAC key accepts self-signed tokens.
func NewVerifier(cfg config.AuthConfig) (*Verifier, error) {
	if cfg.ProviderSecret == "" {
		return nil, ErrNoProviderKey
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedEmails))
	for _, email := range cfg.AllowedEmails {
		email = normalizeEmail(email)
		if email != "" {
			allowed[email] = struct{}{}
		}
	}

	return &Verifier{
		secret:  []byte(cfg.ProviderSecret),
		options: options,
		allowed: allowed,
	}, nil
}

// Verify validates an ID token and returns the admin email it names
func (v *Verifier) Verify(idToken string) (string, error) {
	if idToken == "" {
		return "", ErrInvalidToken
	}
	if len(v.secret) == 0 {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, ErrNoProviderKey)
	}

	token, err := jwt.ParseWithClaims(idToken, &ProviderClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.options...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*ProviderClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	email := normalizeEmail(claims.Email)
	if email == "" {
		return "", fmt.Errorf("%w: missing email", ErrInvalidToken)
	}
	if !v.Allowed(email) {
		return "", ErrNotAllowed
	}
	return email, nil
}

// Allowed reports whether email may use the console. An empty allow-list admits any verified account.
func (v *Verifier) Allowed(email string) bool {
	if len(v.allowed) == 0 {
		return true
	}
	_, ok := v.allowed[normalizeEmail(email)]
	return ok
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SessionMiddleware installs the cookie session store
func SessionMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return sessions.Sessions(SessionName, store)
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

// LoginResponse names the signed-in admin and where to go next
type LoginResponse struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Redirect string `json:"redirect"`
}

// Handler serves the sign-in endpoints
type Handler struct {
	verifier *Verifier
	tokenTTL time.Duration
	recorder audit.Recorder
	logger   *logging.Logger
}

// NewHandler creates the sign-in handler
func NewHandler(verifier *Verifier, tokenTTL time.Duration, recorder audit.Recorder, logger *logging.Logger) *Handler {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		verifier: verifier,
		tokenTTL: tokenTTL,
		recorder: recorder,
		logger:   logger,
	}
}

// Login exchanges an identity provider token for a console session
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idToken is required"})
		return
	}

	email, err := h.verifier.Verify(req.IDToken)
	if err != nil {
		h.logger.WithError(err).Warn("Sign-in rejected")
		message := "Sign-in failed"
		if errors.Is(err, ErrNotAllowed) {
			message = "This account is not allowed to use the admin console"
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": message})
		return
	}

	token, err := middleware.GenerateToken(email, h.tokenTTL)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue console token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sign-in failed"})
		return
	}

	session := sessions.Default(c)
	session.Set(sessionKey, email)
	if err := session.Save(); err != nil {
		h.logger.WithError(err).Error("Failed to save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sign-in failed"})
		return
	}

	ctx := audit.WithActor(c.Request.Context(), email)
	if err := h.recorder.Record(ctx, audit.NewEntry(ctx, "auth", "login", email)); err != nil {
		h.logger.WithError(err).Warn("Failed to record sign-in")
	}
	h.logger.WithField("admin", email).Info("Admin signed in")

	c.JSON(http.StatusOK, LoginResponse{Email: email, Token: token, Redirect: HomeRoute})
}

// Logout clears the console session
func (h *Handler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		h.logger.WithError(err).Error("Failed to clear session")
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RequireAdmin admits requests carrying a console session or bearer token
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := ""
		if v, ok := sessions.Default(c).Get(sessionKey).(string); ok {
			email = v
		}
		if email == "" {
			if token, ok := middleware.BearerToken(c); ok {
				if parsed, err := middleware.ParseToken(token); err == nil {
					email = parsed
				}
			}
		}

		if email == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in required"})
			c.Abort()
			return
		}

		c.Set(middleware.AdminContextKey, email)
		c.Request = c.Request.WithContext(audit.WithActor(c.Request.Context(), email))
		c.Next()
	}
}
