package password

import (
	"strings"
	"testing"
)

// Parámetros bajos para que el suite no tarde.
var testParams = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func TestHashAndVerify(t *testing.T) {
	phc, err := Hash(testParams, "correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(phc, "$argon2id$v=19$") {
		t.Fatalf("formato PHC inesperado: %q", phc)
	}
	if !Verify("correct horse battery staple", phc) {
		t.Fatal("password correcto rechazado")
	}
	if Verify("correct horse battery stapl", phc) {
		t.Fatal("password incorrecto aceptado")
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	a, err := Hash(testParams, "same password")
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	b, err := Hash(testParams, "same password")
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if a == b {
		t.Fatal("dos hashes del mismo password idénticos: salt repetido")
	}
}

func TestHashRejectsEmptyPassword(t *testing.T) {
	if _, err := Hash(testParams, ""); err == nil {
		t.Fatal("password vacío aceptado")
	}
}

func TestVerifyRejectsMalformedPHC(t *testing.T) {
	bad := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$ZGs",      // variante equivocada
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$ZGs",     // versión equivocada
		"$argon2id$v=19$m=8192,t=1,p=1$!!notbase64$ZGs", // salt corrupto
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA",         // segmentos de menos
	}
	for _, phc := range bad {
		if Verify("whatever", phc) {
			t.Errorf("PHC malformado aceptado: %q", phc)
		}
	}
}

func TestVerifyTamperedDigest(t *testing.T) {
	phc, err := Hash(testParams, "hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	// Voltear el último carácter del digest.
	last := phc[len(phc)-1]
	flip := byte('A')
	if last == 'A' {
		flip = 'B'
	}
	if Verify("hunter22", phc[:len(phc)-1]+string(flip)) {
		t.Fatal("digest adulterado aceptado")
	}
}
