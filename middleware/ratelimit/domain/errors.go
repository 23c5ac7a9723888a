package domain

import "errors"

// Erros de configuração: fatais na inicialização.
var (
	ErrInvalidLimit  = errors.New("rate limit must be > 0")
	ErrInvalidWindow = errors.New("rate limit window must be > 0")
)
