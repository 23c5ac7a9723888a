package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assistant-gateway/middleware/authgate"
	"assistant-gateway/middleware/authgate/session"
	"assistant-gateway/middleware/ginbridge"
	"assistant-gateway/middleware/ratelimit"
	"assistant-gateway/middleware/ratelimit/domain"
	"assistant-gateway/middleware/ratelimit/infra"

	"github.com/gin-gonic/gin"
)

func main() {
	// Exemplo: gate + rate limit injetados num app gin (sem proxy).
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "example-secret"
	}
	resolver, err := session.NewJWTResolver(secret)
	if err != nil {
		log.Fatalf("session error: %v", err)
	}

	gate, err := authgate.NewGate(authgate.Config{
		LoginPath:   "/login",
		HomePath:    "/",
		ExemptPaths: authgate.DefaultExemptPaths,
	})
	if err != nil {
		log.Fatalf("gate error: %v", err)
	}

	store, err := infra.NewWindowStore(domain.Rule{Limit: 5, Window: time.Minute})
	if err != nil {
		log.Fatalf("rate limiter error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ginbridge.Wrap(authgate.Middleware(authgate.Options{Gate: gate, Resolver: resolver})))

	r.GET("/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
	})
	r.POST("/api/auth/token", func(c *gin.Context) {
		tok, exp, err := resolver.Issue("example-user", "", time.Hour)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "An error occurred processing your request"})
			return
		}
		c.SetCookie(resolver.CookieName(), tok, int(time.Until(exp).Seconds()), "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"token": tok})
	})
	r.GET("/", func(c *gin.Context) {
		sess, _ := authgate.SessionFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"userId": sess.UserID})
	})

	model := r.Group("/api")
	model.Use(ginbridge.Wrap(ratelimit.Middleware(ratelimit.Options{
		Store: store,
		Scope: "model",
		KeyFn: ratelimit.PreferKeyFunc(authgate.UserKeyFunc, ratelimit.DefaultKeyFunc("", false)),
	})))
	model.Use(ginbridge.Wrap(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50})))
	model.POST("/chat", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"reply": "ok"})
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
