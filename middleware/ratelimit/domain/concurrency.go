package domain

import "context"

// SlotPool limita quantas operações caras (ex.: chamadas ao modelo hospedado)
// rodam ao mesmo tempo.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar e devolve um
// release que deve ser chamado exatamente uma vez. InUse/Cap servem para logs.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	InUse() int
	Cap() int
}
