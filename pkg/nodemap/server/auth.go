package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/randalmurphal/nodemap/pkg/nodemap/storage"
)

const userIDKey = "user_id"

type claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

func (s *Server) issueToken(u *storage.User) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	})
	return tok.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *Server) parseToken(raw string) (*claims, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if _, revoked := s.revoked.Get(cl.ID); revoked {
		return nil, errors.New("token revoked")
	}
	return &cl, nil
}

// requireToken rejects requests without a valid bearer token and stores the
// caller's user id in the request locals.
func (s *Server) requireToken(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
	}
	cl, err := s.parseToken(raw)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}
	c.Locals(userIDKey, cl.UserID)
	c.Locals("claims", cl)
	return c.Next()
}

func userID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(userIDKey).(int64)
	return id
}

func (s *Server) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u := &storage.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := s.repo.CreateUser(c.UserContext(), u); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return fiber.NewError(fiber.StatusConflict, "Username or email already exists")
		}
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    toUser(u),
	})
}

func (s *Server) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	u, err := s.repo.FindUser(c.UserContext(), req.EmailOrUsername)
	if errors.Is(err, storage.ErrNotFound) {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
	}
	token, err := s.issueToken(u)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"access_token": token,
		"user":         toUser(u),
	})
}

func (s *Server) logout(c *fiber.Ctx) error {
	if cl, ok := c.Locals("claims").(*claims); ok && cl.ID != "" {
		ttl := s.cfg.TokenTTL
		if cl.ExpiresAt != nil {
			ttl = time.Until(cl.ExpiresAt.Time)
		}
		if ttl > 0 {
			s.revoked.Set(cl.ID, struct{}{}, ttl)
		}
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}
