package session

import (
	"time"

	"github.com/dropDatabas3/schoolcore/internal/authz"
)

// Policy es la tabla de idle timeouts por rol.
//
// Un rol no listado cae al timeout MÁS restrictivo conocido, nunca al más
// laxo: una sesión con rol raro expira antes, no después.
type Policy struct {
	timeouts map[authz.Role]time.Duration
	floor    time.Duration
}

// NewPolicy construye la política desde la tabla configurada.
// defaultTTL participa del piso por si la tabla viene vacía.
func NewPolicy(timeouts map[authz.Role]time.Duration, defaultTTL time.Duration) *Policy {
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	floor := defaultTTL
	cp := make(map[authz.Role]time.Duration, len(timeouts))
	for role, d := range timeouts {
		if d <= 0 {
			continue
		}
		cp[role] = d
		if d < floor {
			floor = d
		}
	}
	return &Policy{timeouts: cp, floor: floor}
}

// TimeoutFor retorna el idle timeout del rol.
func (p *Policy) TimeoutFor(role authz.Role) time.Duration {
	if d, ok := p.timeouts[role]; ok {
		return d
	}
	return p.floor
}
