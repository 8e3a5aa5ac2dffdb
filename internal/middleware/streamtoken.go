package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const streamTokenTTL = 30 * time.Minute

var ErrInvalidStreamToken = errors.New("invalid stream token")

// StreamTokens issues and verifies short-lived tokens that let a browser
// follow one job's progress without holding the API key.
type StreamTokens struct {
	Secret []byte
	now    func() time.Time
}

func NewStreamTokens(secret string) *StreamTokens {
	return &StreamTokens{Secret: []byte(secret), now: time.Now}
}

// Issue creates a token bound to jobID.
func (s *StreamTokens) Issue(jobID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"job_id": jobID.String(),
		"exp":    now.Add(streamTokenTTL).Unix(),
		"iat":    now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.Secret)
}

// Verify returns the job id a token was issued for.
func (s *StreamTokens) Verify(tokenStr string) (uuid.UUID, error) {
	if tokenStr == "" {
		return uuid.Nil, ErrInvalidStreamToken
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.Secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidStreamToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidStreamToken
	}

	jobIDStr, _ := claims["job_id"].(string)
	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		return uuid.Nil, ErrInvalidStreamToken
	}
	return jobID, nil
}
