// SPDX-License-Identifier: LGPL-3.0-or-later

package envelope

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/didcomm-x/mediator/did"
	"github.com/didcomm-x/mediator/internal/merr"
)

// fromPriorClaims mirrors the from_prior JWT claim set (spec §3 invariant
// 3): iss is the prior DID, sub the new DID, with optional nbf/exp bounds.
type fromPriorClaims struct {
	jwt.RegisteredClaims
}

// VerifyFromPrior validates msg.FromPrior per spec invariant 3: the JWT's
// iss must differ from sub, iss must resolve to a DID document whose
// authentication set contains the signing kid, the signature must verify,
// and any nbf/exp bounds must hold at the current time. Returns the
// issuer's verification kid on success.
func (c *Codec) VerifyFromPrior(ctx context.Context, msg *Message) (string, error) {
	token := msg.FromPrior

	var kid string
	claims := &fromPriorClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		k, ok := t.Header["kid"].(string)
		if !ok || k == "" {
			return nil, merr.New(merr.Malformed, "from_prior jwt missing kid header")
		}
		kid = k

		issuer, err := claims.GetIssuer()
		if err != nil || issuer == "" {
			return nil, merr.New(merr.Malformed, "from_prior jwt missing iss")
		}
		doc, err := resolveDoc(ctx, c.DIDs, did.AgentDID(issuer))
		if err != nil {
			return nil, err
		}
		raw, crv, err := did.ResolveAuthenticationKey(doc, kid)
		if err != nil {
			return nil, merr.Wrap(merr.DIDUrlNotFound, err, "resolve from_prior issuer key "+kid)
		}
		return toVerifyKeyJWT(crv, raw)
	}, jwt.WithValidMethods([]string{"EdDSA", "ES256"}))
	if err != nil {
		return "", merr.Wrap(merr.Malformed, err, "verify from_prior jwt")
	}
	if !parsed.Valid {
		return "", merr.New(merr.Malformed, "from_prior jwt invalid")
	}

	issuer, _ := claims.GetIssuer()
	subject, _ := claims.GetSubject()
	if issuer == "" || subject == "" || issuer == subject {
		return "", merr.New(merr.Malformed, "from_prior jwt iss must differ from sub")
	}
	if msg.From != "" && subject != msg.From {
		return "", merr.New(merr.Malformed, "from_prior sub does not match message from")
	}

	now := time.Now()
	if nbf, err := claims.GetNotBefore(); err == nil && nbf != nil && now.Before(nbf.Time) {
		return "", merr.New(merr.Malformed, "from_prior jwt not yet valid")
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && now.After(exp.Time) {
		return "", merr.New(merr.Malformed, "from_prior jwt expired")
	}

	return kid, nil
}

func toVerifyKeyJWT(crv string, raw []byte) (any, error) {
	switch crv {
	case "Ed25519":
		return ed25519.PublicKey(raw), nil
	case "P-256":
		x, y := elliptic.Unmarshal(elliptic.P256(), raw)
		if x == nil {
			return nil, merr.New(merr.Malformed, "malformed P-256 point")
		}
		return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
	default:
		return nil, merr.Newf(merr.Unsupported, "from_prior issuer key curve %q", crv)
	}
}
