package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"paylink/config"
	"paylink/utils"
)

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("JWT_AUD", "")
	t.Setenv("JWT_ISS", "")

	tokenUserID, tokenRole, tokenEmail, tokenTTL = 7, "lawyer", "counsel@firm.test", time.Minute
	var out bytes.Buffer
	tokenCmd.SetOut(&out)
	if err := runToken(tokenCmd, nil); err != nil {
		t.Fatalf("runToken: %v", err)
	}

	claims, err := utils.NewTokens(config.JWTConfig{Secret: "cli-secret"}, nil).
		ValidateAccessToken(context.Background(), strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("minted token does not validate: %v", err)
	}
	if claims.UserID != 7 || claims.Role != "payee" || claims.Email != "counsel@firm.test" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenCommand_Rejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	tokenUserID, tokenRole = 0, "payer"
	if err := runToken(tokenCmd, nil); err == nil {
		t.Fatal("expected missing id to fail")
	}
	tokenUserID, tokenRole = 1, "superuser"
	if err := runToken(tokenCmd, nil); err == nil || !strings.Contains(err.Error(), "unknown role") {
		t.Fatalf("expected unknown role error, got %v", err)
	}
}

func TestLedgerObservers_NoneConfigured(t *testing.T) {
	observers, closeFn, err := ledgerObservers(&config.Config{})
	if err != nil {
		t.Fatalf("ledgerObservers: %v", err)
	}
	defer closeFn()
	if len(observers) != 0 {
		t.Fatalf("expected no observers, got %d", len(observers))
	}
}
