package ginbridge

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"assistant-gateway/middleware/authgate"
	"assistant-gateway/middleware/ratelimit"
	"assistant-gateway/middleware/ratelimit/domain"
	"assistant-gateway/middleware/ratelimit/infra"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestWrap_RateLimitAbortsChain(t *testing.T) {
	store, err := infra.NewWindowStore(domain.Rule{Limit: 1, Window: time.Minute})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	calls := 0
	r := gin.New()
	r.Use(Wrap(ratelimit.Middleware(ratelimit.Options{Store: store})))
	r.POST("/api/chat", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i+1, want, w.Code)
		}
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
}

func TestWrap_AuthGatePropagatesSession(t *testing.T) {
	gate, err := authgate.NewGate(authgate.Config{LoginPath: "/login", HomePath: "/"})
	if err != nil {
		t.Fatalf("failed to create gate: %v", err)
	}
	resolver := authgate.ResolverFunc(func(r *http.Request) (authgate.Session, error) {
		if r.Header.Get("X-Test-User") == "" {
			return authgate.Session{}, nil
		}
		return authgate.Session{UserID: r.Header.Get("X-Test-User")}, nil
	})

	r := gin.New()
	r.Use(Wrap(authgate.Middleware(authgate.Options{Gate: gate, Resolver: resolver})))
	r.GET("/dashboard", func(c *gin.Context) {
		sess, _ := authgate.SessionFromContext(c.Request.Context())
		c.String(http.StatusOK, sess.UserID)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if w.Code != http.StatusTemporaryRedirect || w.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("X-Test-User", "u7")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "u7" {
		t.Fatalf("expected 200 with user id, got %d %q", w.Code, w.Body.String())
	}
}
