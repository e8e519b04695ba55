package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"lg/fitai-go-api/internal/onboarding"
)

// errUnknownUser is returned by a userLookup when no row matches.
var errUnknownUser = errors.New("unknown user")

// userLookup resolves API users for login and bearer auth.
type userLookup interface {
	byUsername(ctx context.Context, username string) (user, error)
	idForToken(ctx context.Context, token string) (string, error)
}

type tokenOwner struct {
	ID string `db:"id"`
}

// pgUsers reads the users table.
type pgUsers struct {
	db *pgxpool.Pool
}

func (p pgUsers) byUsername(ctx context.Context, username string) (user, error) {
	u, err := queryOne[user](p.db, ctx,
		"SELECT * FROM users WHERE username = @username",
		pgx.NamedArgs{"username": username})
	if errors.Is(err, pgx.ErrNoRows) {
		return u, errUnknownUser
	}
	return u, err
}

func (p pgUsers) idForToken(ctx context.Context, token string) (string, error) {
	u, err := queryOne[tokenOwner](p.db, ctx,
		"SELECT id FROM users WHERE auth_token = @token",
		pgx.NamedArgs{"token": token})
	if errors.Is(err, pgx.ErrNoRows) {
		return "", errUnknownUser
	}
	return u.ID, err
}

// dummyHash is compared when the username is unknown so a rejected login
// takes as long as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy"), bcrypt.DefaultCost)

type loginResponse struct {
	Token  string              `json:"token"`
	UserID string              `json:"user_id"`
	State  onboarding.Snapshot `json:"state"`
}

// login checks the credentials, opens (or restores) the user's onboarding
// session and returns the auth token with the session state.
// POST /api/login (public).
func (h *Handler) login(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.users.byUsername(c, body.Username)
	hash := dummyHash
	if err == nil {
		hash = []byte(u.Password)
	} else if !errors.Is(err, errUnknownUser) {
		log.Error().Err(err).Msg("login lookup")
		apiError(c, http.StatusInternalServerError, "login failed")
		return
	}
	if cmpErr := bcrypt.CompareHashAndPassword(hash, []byte(body.Password)); err != nil || cmpErr != nil {
		log.Info().Str("username", body.Username).Msg("login rejected")
		apiError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	t := h.sessions.get(c, u.ID)
	c.JSON(http.StatusOK, loginResponse{Token: u.AuthToken, UserID: u.ID, State: t.Snapshot()})
}

// bearerToken returns the token from "Authorization: Bearer <token>".
func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	return token, ok && token != ""
}

// authMiddleware resolves the bearer token to a user id and sets user_id.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			apiError(c, http.StatusUnauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}
		userID, err := h.users.idForToken(c, token)
		switch {
		case errors.Is(err, errUnknownUser):
			apiError(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		case err != nil:
			log.Error().Err(err).Msg("token lookup")
			apiError(c, http.StatusInternalServerError, "authentication failed")
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
}
