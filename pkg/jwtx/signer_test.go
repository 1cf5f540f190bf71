package jwtx_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testIssuer = "gatekeeper-test"

var testSecret = []byte(strings.Repeat("s", 32))

func claims(ttl time.Duration) jwtx.Claims {
	return jwtx.NewAccessClaims("01HZUSER", "user@example.com", "Admin", testIssuer, ttl, time.Now().UTC())
}

func TestHS256SignAndVerify(t *testing.T) {
	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)
	require.Equal(t, "HS256", signer.Alg())

	token, err := signer.Sign(claims(time.Minute))
	require.NoError(t, err)

	got, err := jwtx.NewVerifierHS256(testSecret, testIssuer).Verify(token)
	require.NoError(t, err)
	require.Equal(t, "01HZUSER", got.Subject)
	require.Equal(t, "user@example.com", got.Email)
	require.Equal(t, "Admin", got.Role)
}

func TestHS256RejectsShortSecret(t *testing.T) {
	_, err := jwtx.NewSignerHS256([]byte("short"))
	require.Error(t, err)
}

func TestHS256VerifyFailures(t *testing.T) {
	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)

	expired, err := signer.Sign(claims(-time.Minute))
	require.NoError(t, err)
	valid, err := signer.Sign(claims(time.Minute))
	require.NoError(t, err)

	v := jwtx.NewVerifierHS256(testSecret, testIssuer)

	_, err = v.Verify(expired)
	require.ErrorIs(t, err, jwtx.ErrExpired)

	_, err = v.Verify("not.a.jwt")
	require.ErrorIs(t, err, jwtx.ErrMalformed)

	_, err = jwtx.NewVerifierHS256([]byte(strings.Repeat("x", 32)), testIssuer).Verify(valid)
	require.ErrorIs(t, err, jwtx.ErrMalformed)

	_, err = jwtx.NewVerifierHS256(testSecret, "someone-else").Verify(valid)
	require.ErrorIs(t, err, jwtx.ErrIssuer)
}

func TestEdDSASignAndVerify(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := jwtx.NewSignerEdDSA("k1", priv)
	require.NoError(t, err)
	require.Equal(t, "EdDSA", signer.Alg())

	keys := jwtx.NewKeySet()
	keys.AddSigner(signer)

	token, err := signer.Sign(claims(time.Minute))
	require.NoError(t, err)

	got, err := jwtx.NewVerifierEdDSA(keys, testIssuer).Verify(token)
	require.NoError(t, err)
	require.Equal(t, "01HZUSER", got.Subject)
}

func TestEdDSAUnknownKID(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("k1", priv)
	require.NoError(t, err)

	token, err := signer.Sign(claims(time.Minute))
	require.NoError(t, err)

	_, err = jwtx.NewVerifierEdDSA(jwtx.NewKeySet(), testIssuer).Verify(token)
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
}

func TestVerifierRejectsAlgorithmSwap(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	ed, err := jwtx.NewSignerEdDSA("k1", priv)
	require.NoError(t, err)

	token, err := ed.Sign(claims(time.Minute))
	require.NoError(t, err)

	_, err = jwtx.NewVerifierHS256(testSecret, testIssuer).Verify(token)
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}
