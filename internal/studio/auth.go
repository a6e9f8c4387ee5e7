package studio

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const cookieName = "recap_session"

// Claims represents the JWT payload.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) generateToken(username string) (string, error) {
	now := s.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.SessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *Server) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.AuthEnabled() {
			respondJSON(w, http.StatusOK, map[string]string{"message": "login disabled"})
			return
		}

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username != s.cfg.Username {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(req.Password)); err != nil {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		token, err := s.generateToken(req.Username)
		if err != nil {
			s.logger.Error("failed to sign session token", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to generate token")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(s.cfg.SessionTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		respondJSON(w, http.StatusOK, map[string]string{"message": "login successful", "token": token})
	}
}

func (s *Server) handleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
		respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
	}
}

// requireAuth verifies the session token from the Authorization header or
// the session cookie. It lets everything through when login is disabled.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.AuthEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		var tokenString string
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			tokenString = strings.TrimPrefix(h, "Bearer ")
		}
		if tokenString == "" {
			if cookie, err := r.Cookie(cookieName); err == nil {
				tokenString = cookie.Value
			}
		}
		if tokenString == "" {
			respondError(w, http.StatusUnauthorized, "missing authentication token")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.jwtSecret, nil
		}, jwt.WithTimeFunc(s.now))
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid authentication token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HashPassword returns the bcrypt hash to store in STUDIO_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
