package security

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "test_secret_key_minimum_32_chars"

func TestJoinTicketRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		roomCode string
		playerID uint
	}{
		{
			name:     "First player",
			roomCode: "ABC123",
			playerID: 1,
		},
		{
			name:     "Late joiner",
			roomCode: "ZX90QP",
			playerID: 987,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket, err := GenerateJoinTicket(tt.roomCode, tt.playerID, testSecret, time.Hour)
			if err != nil {
				t.Fatalf("GenerateJoinTicket() error = %v", err)
			}

			claims, err := ValidateJoinTicket(ticket, testSecret)
			if err != nil {
				t.Fatalf("ValidateJoinTicket() error = %v", err)
			}

			if claims.RoomCode != tt.roomCode {
				t.Errorf("RoomCode = %q, want %q", claims.RoomCode, tt.roomCode)
			}
			if claims.PlayerID != tt.playerID {
				t.Errorf("PlayerID = %d, want %d", claims.PlayerID, tt.playerID)
			}
			if claims.ExpiresAt.Time.After(time.Now().Add(time.Hour + time.Minute)) {
				t.Error("Ticket expiration is too far in the future")
			}
		})
	}
}

func TestValidateJoinTicket_Invalid(t *testing.T) {
	expired, err := GenerateJoinTicket("ABC123", 1, testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJoinTicket() error = %v", err)
	}
	otherKey, err := GenerateJoinTicket("ABC123", 1, "another_secret_key_minimum_32_chars", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJoinTicket() error = %v", err)
	}

	tests := []struct {
		name   string
		ticket string
	}{
		{name: "Empty ticket", ticket: ""},
		{name: "Invalid format", ticket: "invalid.token.here"},
		{name: "Expired", ticket: expired},
		{name: "Signed with another key", ticket: otherKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateJoinTicket(tt.ticket, testSecret); err == nil {
				t.Error("ValidateJoinTicket() expected error, got nil")
			}
		})
	}
}

func TestGenerateSecureCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := GenerateSecureCode(6)
		if len(code) != 6 {
			t.Fatalf("len(code) = %d, want 6", len(code))
		}
		if strings.Trim(code, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789") != "" {
			t.Fatalf("code %q contains characters outside A-Z0-9", code)
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Errorf("only %d distinct codes out of 50", len(seen))
	}
}
