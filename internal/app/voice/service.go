// Package voice issues access tokens for the per-game voice channels.
package voice

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

const (
	TokenActionLogin = "login"
	TokenActionJoin  = "join"
)

// Service signs HS256 access tokens for the voice backend. A game's room id
// doubles as the voice channel name, so every party gets its own channel.
type Service struct {
	secret string
	issuer string
	domain string
}

func NewService(secret, issuer, domain string) *Service {
	return &Service{
		secret: secret,
		issuer: issuer,
		domain: domain,
	}
}

// GenerateToken signs a token for logging in to voice or joining a game's
// channel.
func (s *Service) GenerateToken(user, action, gameID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("voice service is nil")
	}
	if user == "" {
		return "", fmt.Errorf("user is required")
	}
	if s.secret == "" || s.issuer == "" || s.domain == "" {
		return "", fmt.Errorf("voice config is incomplete")
	}

	userURI := s.userURI(user)
	targetURI, err := s.targetURI(action, gameID, userURI)
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"iss": s.issuer,
		"sub": user,
		"exp": time.Now().Add(time.Hour * 1).Unix(),
		"vxa": action,
		"vxi": fmt.Sprintf("%d-%d", time.Now().UnixNano(), rand.Int63()),
		"f":   userURI,
		"t":   targetURI,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

func (s *Service) userURI(user string) string {
	return "sip:." + s.issuer + "." + user + ".@" + s.domain
}

func (s *Service) channelURI(gameID string) string {
	return "sip:confctl-g-" + gameID + "@" + s.domain
}

func (s *Service) targetURI(action, gameID, userURI string) (string, error) {
	switch action {
	case TokenActionLogin:
		return userURI, nil
	case TokenActionJoin:
		if gameID == "" {
			return "", fmt.Errorf("game id is required for join tokens")
		}
		return s.channelURI(gameID), nil
	default:
		return "", fmt.Errorf("unsupported voice action: %s", action)
	}
}
