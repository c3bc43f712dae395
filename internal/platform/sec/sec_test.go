// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/profilegate/internal/platform/sec"
)

func signToken(t *testing.T, key *rsa.PrivateKey, claims sec.AuthClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func newClaims(issuer string, ttl time.Duration) sec.AuthClaims {
	now := time.Now()
	return sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   "user-1",
		Username: "reader",
		Role:     string(sec.RoleMember),
	}
}

/*
TestTokenVerifier_VerifyToken covers the accept and reject paths of RS256 verification.
*/
func TestTokenVerifier_VerifyToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	verifier := sec.NewTokenVerifierFromKey(&key.PublicKey, "yomira.app")

	t.Run("valid_token", func(t *testing.T) {
		claims, err := verifier.VerifyToken(signToken(t, key, newClaims("yomira.app", time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "member", claims.Role)
	})

	t.Run("expired_token", func(t *testing.T) {
		_, err := verifier.VerifyToken(signToken(t, key, newClaims("yomira.app", -time.Minute)))
		assert.Error(t, err)
	})

	t.Run("wrong_issuer", func(t *testing.T) {
		_, err := verifier.VerifyToken(signToken(t, key, newClaims("elsewhere", time.Minute)))
		assert.Error(t, err)
	})

	t.Run("wrong_key", func(t *testing.T) {
		_, err := verifier.VerifyToken(signToken(t, otherKey, newClaims("yomira.app", time.Minute)))
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verifier.VerifyToken("not-a-jwt")
		assert.Error(t, err)
	})
}

/*
TestUserRole_AtLeast checks the linear role hierarchy.
*/
func TestUserRole_AtLeast(t *testing.T) {
	tests := []struct {
		name     string
		role     sec.UserRole
		target   sec.UserRole
		expected bool
	}{
		{"admin_over_moderator", sec.RoleAdmin, sec.RoleModerator, true},
		{"moderator_over_admin", sec.RoleModerator, sec.RoleAdmin, false},
		{"member_equal_member", sec.RoleMember, sec.RoleMember, true},
		{"premium_over_member", sec.RolePremium, sec.RoleMember, true},
		{"unknown_below_member", sec.UserRole("ghost"), sec.RoleMember, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.role.AtLeast(tt.target))
		})
	}

	assert.False(t, sec.UserRole("").Valid())
	assert.True(t, sec.RoleAdmin.Valid())
}
