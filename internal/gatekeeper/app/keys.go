package app

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

// InitTokenKeys builds the signer and verifier for the configured algorithm.
//
//   - HS256: SECRET_KEY is the shared secret. When unset a random secret is
//     generated, so every restart invalidates outstanding tokens.
//   - EdDSA: the Ed25519 key at SIGNING_KEY_FILE is loaded, or generated and
//     written there on first start.
func InitTokenKeys(cfg Config, logger *slog.Logger) (jwtx.Signer, jwtx.Verifier, error) {
	switch cfg.TokenAlgorithm {
	case "EdDSA":
		key, err := cryptox.LoadOrGenerateEd25519Key(cfg.SigningKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load signing key: %w", err)
		}
		sum := sha256.Sum256(key.Public().(ed25519.PublicKey))
		kid := base64.RawURLEncoding.EncodeToString(sum[:8])

		signer, err := jwtx.NewSignerEdDSA(kid, key)
		if err != nil {
			return nil, nil, err
		}
		keys := jwtx.NewKeySet()
		keys.AddSigner(signer)

		logger.Info("token signing key loaded", slog.String("alg", signer.Alg()), slog.String("kid", kid))
		return signer, jwtx.NewVerifierEdDSA(keys, cfg.TokenIssuer), nil

	default:
		secret := []byte(cfg.SecretKey)
		if len(secret) == 0 {
			generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to generate secret: %w", err)
			}
			secret = []byte(generated)
			logger.Warn("SECRET_KEY not set; using an ephemeral secret, tokens will not survive a restart")
		}

		signer, err := jwtx.NewSignerHS256(secret)
		if err != nil {
			return nil, nil, err
		}
		return signer, jwtx.NewVerifierHS256(secret, cfg.TokenIssuer), nil
	}
}
