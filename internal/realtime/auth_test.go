package realtime

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestVerify(t *testing.T) {
	auth := NewAuthenticator("test-secret")

	token, err := auth.IssueToken(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role:     "admin",
		TenantID: 3,
		Domain:   "t1.example.com",
	})
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	scope, err := auth.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if scope.SuperAdmin {
		t.Error("admin role must not be super-admin")
	}
	if scope.TenantID != 3 || scope.Domain != "t1.example.com" {
		t.Errorf("unexpected scope: %+v", scope)
	}
}

func TestVerifyRejectsBadSecret(t *testing.T) {
	token, err := NewAuthenticator("secret-a").IssueToken(Claims{Role: RoleSuperAdmin})
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	if _, err := NewAuthenticator("secret-b").Verify(token); err == nil {
		t.Error("expected verification failure for wrong secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	auth := NewAuthenticator("test-secret")
	token, err := auth.IssueToken(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	if _, err := auth.Verify(token); err == nil {
		t.Error("expected verification failure for expired token")
	}
}

func TestRoomDomain(t *testing.T) {
	tests := []struct {
		name      string
		scope     Scope
		requested string
		want      string
		wantErr   error
	}{
		{
			name:      "super-admin picks any domain",
			scope:     Scope{SuperAdmin: true},
			requested: "other.example.com",
			want:      "other.example.com",
		},
		{
			name:  "super-admin may watch all domains",
			scope: Scope{SuperAdmin: true},
			want:  "",
		},
		{
			name:      "scoped client pinned to own domain",
			scope:     Scope{Domain: "t1.example.com"},
			requested: "",
			want:      "t1.example.com",
		},
		{
			name:      "scoped client may name its own domain",
			scope:     Scope{Domain: "t1.example.com"},
			requested: "t1.example.com",
			want:      "t1.example.com",
		},
		{
			name:      "scoped client denied another domain",
			scope:     Scope{Domain: "t1.example.com"},
			requested: "t2.example.com",
			wantErr:   ErrScopeViolation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.scope.RoomDomain(tt.requested)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("domain = %q, want %q", got, tt.want)
			}
		})
	}
}
