package domain

import "time"

// ClientWindow é o estado de janela fixa de uma chave.
//
// Count só é incrementado enquanto now < WindowEnd. Depois disso a janela é
// considerada inexistente.
type ClientWindow struct {
	Count     int
	WindowEnd time.Time
}

// Stale indica se a janela já expirou em now.
func (w *ClientWindow) Stale(now time.Time) bool {
	return w == nil || !now.Before(w.WindowEnd)
}

// Take aplica a regra de janela fixa sobre w e retorna a decisão.
// Se a janela estiver expirada, ela é reiniciada antes da contagem.
//
// Não é thread-safe: quem chama deve segurar o lock que protege w.
func (w *ClientWindow) Take(rule Rule, now time.Time) Decision {
	if w.Stale(now) {
		w.Count = 0
		w.WindowEnd = now.Add(rule.Window)
	}
	if w.Count < rule.Limit {
		w.Count++
		return Allow(rule.Limit, rule.Limit-w.Count, w.WindowEnd)
	}
	return Deny(rule.Limit, w.WindowEnd, w.WindowEnd.Sub(now))
}
