// Package ginbridge adapta os middlewares net/http do gateway para gin.
package ginbridge

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Wrap converte um middleware net/http em gin.HandlerFunc. Se o middleware
// chamar next, a cadeia do gin continua com o request (e o contexto) que ele
// repassou; caso contrário a cadeia é abortada e a resposta dele vale.
func Wrap(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})

		mw(next).ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
		}
	}
}
