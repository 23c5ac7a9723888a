package domain

import "time"

// Clock abstrai o relógio para permitir testes determinísticos.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapta uma função para Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock usa time.Now.
var SystemClock Clock = ClockFunc(time.Now)
