package tenantdb

import "testing"

func TestStoreNameFor(t *testing.T) {
	got, err := StoreNameFor("Greenfield")
	if err != nil {
		t.Fatalf("StoreNameFor: %v", err)
	}
	if got != "trust_greenfield" {
		t.Fatalf("nombre inesperado: %q", got)
	}
}

func TestStoreNameForRejectsUnsafeCodes(t *testing.T) {
	// El nombre termina interpolado en CREATE/DROP DATABASE: nada que no pase
	// la validación de código puede llegar ahí.
	bad := []string{"", "ab", "1abc", "drop;--", "con espacios", "UPPER-dash"}
	for _, c := range bad {
		if _, err := StoreNameFor(c); err == nil {
			t.Errorf("código inseguro aceptado: %q", c)
		}
	}
}

func TestProvisionLockIDStable(t *testing.T) {
	a := provisionLockID("trust_alpha")
	if b := provisionLockID("trust_alpha"); a != b {
		t.Fatal("lock ID no determinístico")
	}
	if b := provisionLockID("trust_beta"); a == b {
		t.Fatal("colisión trivial de lock IDs")
	}
}
