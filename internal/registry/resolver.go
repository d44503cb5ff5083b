package registry

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/dropDatabas3/schoolcore/internal/cache"
	"github.com/dropDatabas3/schoolcore/internal/observability/logger"
)

// resolverCacheTTL acota cuánto puede tardar en verse una suspensión
// hecha desde otro nodo. La invalidación local es inmediata.
const resolverCacheTTL = 30 * time.Second

// Resolver mapea un request entrante a su Trust.
//
// Orden de resolución: código explícito > subdominio del host. Un host igual
// al dominio raíz resuelve a "sin tenant" (scope de sistema), que NO es un
// error: el caller decide si esa ruta admite scope de sistema.
type Resolver struct {
	store      Store
	cache      cache.Client
	rootDomain string
}

func NewResolver(store Store, c cache.Client, rootDomain string) *Resolver {
	return &Resolver{
		store:      store,
		cache:      c,
		rootDomain: strings.ToLower(strings.TrimSpace(rootDomain)),
	}
}

// Resolve determina el trust del request.
//
// Retorna (nil, nil) para requests al dominio raíz (scope de sistema).
// Falla cerrado: subdominio desconocido → ErrUnknownTenant; trust existente
// pero no ACTIVE → ErrInactiveTenant. Nunca cae a un tenant por defecto.
func (r *Resolver) Resolve(ctx context.Context, host, explicitCode string) (*Trust, error) {
	if code := NormalizeCode(explicitCode); code != "" {
		return r.lookup(ctx, code, r.byCode)
	}

	sub := r.SubdomainOf(host)
	if sub == "" {
		// Dominio raíz: scope de sistema.
		return nil, nil
	}
	return r.lookup(ctx, sub, r.bySubdomain)
}

// SubdomainOf extrae el primer label bajo el dominio raíz, o "" si el host
// es el dominio raíz (o no pertenece a él).
func (r *Resolver) SubdomainOf(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	if h2, _, err := net.SplitHostPort(h); err == nil {
		h = h2
	}
	if h == r.rootDomain {
		return ""
	}
	suffix := "." + r.rootDomain
	if !strings.HasSuffix(h, suffix) {
		// Host ajeno al deployment: tratarlo como desconocido, no como raíz.
		return h
	}
	rest := strings.TrimSuffix(h, suffix)
	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		rest = rest[i+1:]
	}
	return rest
}

type lookupFn func(ctx context.Context, key string) (*Trust, error)

func (r *Resolver) byCode(ctx context.Context, code string) (*Trust, error) {
	return r.store.GetTrustByCode(ctx, code)
}

func (r *Resolver) bySubdomain(ctx context.Context, sub string) (*Trust, error) {
	return r.store.GetTrustBySubdomain(ctx, sub)
}

func (r *Resolver) lookup(ctx context.Context, key string, fn lookupFn) (*Trust, error) {
	if t, ok := r.cached(ctx, key); ok {
		return r.gate(t)
	}

	t, err := fn(ctx, key)
	if err != nil {
		if err == ErrNotFound {
			return nil, ErrUnknownTenant
		}
		return nil, err
	}
	r.remember(ctx, key, t)
	return r.gate(t)
}

// gate aplica la política fail-closed sobre el estado del trust.
func (r *Resolver) gate(t *Trust) (*Trust, error) {
	if !t.Active() {
		return nil, ErrInactiveTenant
	}
	return t, nil
}

// Invalidate purga un trust del cache (tras suspend/activate).
func (r *Resolver) Invalidate(ctx context.Context, t *Trust) {
	if r.cache == nil || t == nil {
		return
	}
	_ = r.cache.Delete(ctx, "trust:"+t.Code)
	_ = r.cache.Delete(ctx, "trust:"+t.Subdomain)
}

func (r *Resolver) cached(ctx context.Context, key string) (*Trust, bool) {
	if r.cache == nil {
		return nil, false
	}
	raw, err := r.cache.Get(ctx, "trust:"+key)
	if err != nil {
		return nil, false
	}
	var t Trust
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, false
	}
	return &t, true
}

func (r *Resolver) remember(ctx context.Context, key string, t *Trust) {
	if r.cache == nil || t == nil {
		return
	}
	b, err := json.Marshal(t)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, "trust:"+key, string(b), resolverCacheTTL); err != nil {
		logger.From(ctx).Debug("trust cache set failed", logger.TrustCode(t.Code), logger.Err(err))
	}
}
