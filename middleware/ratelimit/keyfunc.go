package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extrai a identidade do cliente usada como chave do limiter.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc usa, nesta ordem: o header keyHeader (se configurado), o
// primeiro IP do X-Forwarded-For (apenas se trustXFF) e o host de RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}
		return ClientIP(r, trustXFF)
	}
}

// ClientIP devolve o IP de origem da requisição.
// X-Forwarded-For só é considerado atrás de um proxy confiável (trustXFF).
func ClientIP(r *http.Request, trustXFF bool) string {
	if trustXFF {
		// pega o primeiro IP do X-Forwarded-For (cliente original)
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// PreferKeyFunc tenta cada KeyFunc em ordem e usa o primeiro resultado não vazio.
// Ex.: ID do usuário autenticado e, na falta dele, o IP.
func PreferKeyFunc(fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if k := fn(r); k != "" {
				return k
			}
		}
		return "unknown"
	}
}
