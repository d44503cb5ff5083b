package tenantdb

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/dropDatabas3/schoolcore/internal/registry"
)

// storePrefix antecede el código del trust en el nombre de la database.
const storePrefix = "trust_"

// StoreNameFor deriva determinísticamente el nombre de la database aislada
// de un trust. El código ya validado garantiza un identificador SQL seguro.
func StoreNameFor(code string) (string, error) {
	code = registry.NormalizeCode(code)
	if err := registry.ValidateCode(code); err != nil {
		return "", err
	}
	return storePrefix + code, nil
}

// provisionLockID genera un ID para pg_advisory_lock basado en el nombre del
// store, así dos provisioning concurrentes del mismo código serializan.
func provisionLockID(storeName string) int64 {
	h := sha256.Sum256([]byte("tenant_provision:" + storeName))
	// Usar los primeros 8 bytes como int64
	return int64(binary.BigEndian.Uint64(h[:8]))
}

// quoteIdent cita el identificador para CREATE/DROP DATABASE.
func quoteIdent(name string) string {
	return fmt.Sprintf("%q", name)
}
