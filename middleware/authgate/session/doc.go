// Package session implementa os SessionResolver do authgate: tokens JWT
// assinados (cookie ou Bearer) e sessões opacas guardadas em sqlite.
package session
