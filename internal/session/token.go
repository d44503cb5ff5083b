package session

import (
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/schoolcore/internal/authz"
)

// tokenLeeway tolera clock skew al validar iat/exp.
const tokenLeeway = 30 * time.Second

// Signer firma y verifica el carrier JWT de la sesión (HS256).
// El token lleva los claims de identidad; la actividad vive en el store.
type Signer struct {
	secret []byte
	issuer string
	// maxAge acota la vida absoluta del token, por encima del idle timeout.
	maxAge time.Duration
}

func NewSigner(secret, issuer string, maxAge time.Duration) *Signer {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), issuer: issuer, maxAge: maxAge}
}

// Sign emite el token de una sesión.
func (s *Signer) Sign(sess Session) (string, error) {
	now := time.Now().UTC()
	claims := jwtv5.MapClaims{
		"iss":   s.issuer,
		"sub":   sess.PrincipalID,
		"sid":   sess.ID,
		"kind":  string(sess.Kind),
		"role":  string(sess.Role),
		"iat":   now.Unix(),
		"exp":   now.Add(s.maxAge).Unix(),
	}
	if sess.TrustCode != "" {
		claims["trust"] = sess.TrustCode
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return tk.SignedString(s.secret)
}

// tokenRef es lo que el verify extrae del carrier: suficiente para ubicar el
// registro server-side y detectar manipulación.
type tokenRef struct {
	SessionID   string
	PrincipalID string
	Kind        authz.Kind
	Role        authz.Role
	TrustCode   string
}

// Verify valida firma e issuer y extrae la referencia de sesión.
func (s *Signer) Verify(raw string) (*tokenRef, error) {
	tk, err := jwtv5.Parse(raw,
		func(t *jwtv5.Token) (any, error) { return s.secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithIssuer(s.issuer),
		jwtv5.WithLeeway(tokenLeeway),
	)
	if err != nil || !tk.Valid {
		return nil, ErrUnauthenticated
	}
	claims, ok := tk.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrUnauthenticated
	}
	ref := &tokenRef{
		SessionID:   claimStr(claims, "sid"),
		PrincipalID: claimStr(claims, "sub"),
		Kind:        authz.Kind(claimStr(claims, "kind")),
		Role:        authz.Role(claimStr(claims, "role")),
		TrustCode:   claimStr(claims, "trust"),
	}
	if ref.SessionID == "" || ref.PrincipalID == "" {
		return nil, ErrUnauthenticated
	}
	return ref, nil
}

func claimStr(m jwtv5.MapClaims, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// matches chequea que el registro server-side coincida con el token.
// Cualquier divergencia (sesión reciclada, claims viejos) invalida.
func (r *tokenRef) matches(sess Session) error {
	if sess.PrincipalID != r.PrincipalID || sess.Kind != r.Kind ||
		sess.Role != r.Role || sess.TrustCode != r.TrustCode {
		return fmt.Errorf("%w: token/record mismatch", ErrUnauthenticated)
	}
	return nil
}
