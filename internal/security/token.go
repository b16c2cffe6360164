package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mroshb/trivia_arena/pkg/utils"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// TicketClaims bind a websocket connection to one player of one room.
type TicketClaims struct {
	RoomCode string `json:"room_code"`
	PlayerID uint   `json:"player_id"`
	jwt.RegisteredClaims
}

// GenerateJoinTicket creates a signed ticket handed to a player after joining
func GenerateJoinTicket(roomCode string, playerID uint, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &TicketClaims{
		RoomCode: roomCode,
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", playerID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateJoinTicket validates and parses a join ticket
func ValidateJoinTicket(tokenString, secret string) (*TicketClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TicketClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*TicketClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid ticket")
}

// GenerateSecureCode generates a cryptographically secure random code
func GenerateSecureCode(length int) string {
	return utils.RandomString(codeCharset, length)
}
