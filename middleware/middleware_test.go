package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prize-hub/models"
	"prize-hub/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func ok(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

func send(t *testing.T, app *fiber.App, req *http.Request) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoginThrottle_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	throttle := NewLoginThrottle(client, 3, time.Minute)
	app := fiber.New()
	app.Post("/admin/login", throttle.Handler(), ok)

	for i := 1; i <= 3; i++ {
		if code := send(t, app, httptest.NewRequest(http.MethodPost, "/admin/login", nil)); code != fiber.StatusOK {
			t.Fatalf("attempt %d: %d", i, code)
		}
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/admin/login", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests || resp.Header.Get(fiber.HeaderRetryAfter) != "60" {
		t.Fatalf("fourth attempt: %d retry-after=%q", resp.StatusCode, resp.Header.Get(fiber.HeaderRetryAfter))
	}

	if ttl := mr.TTL(loginIPKey("0.0.0.0")); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("window ttl = %s", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if code := send(t, app, httptest.NewRequest(http.MethodPost, "/admin/login", nil)); code != fiber.StatusOK {
		t.Fatalf("after window: %d", code)
	}
}

func TestLoginThrottle_RepairsCounterWithoutTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	// a counter whose EXPIRE was lost
	key := loginIPKey("1.2.3.4")
	if err := mr.Set(key, "9"); err != nil {
		t.Fatal(err)
	}

	throttle := NewLoginThrottle(client, 3, time.Minute)
	allowed, err := throttle.Hit(context.Background(), "1.2.3.4")
	if err != nil || allowed {
		t.Fatalf("Hit = %v, %v; want throttled", allowed, err)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl = %s, want a window", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	allowed, err = throttle.Hit(context.Background(), "1.2.3.4")
	if err != nil || !allowed {
		t.Fatalf("after window: %v, %v", allowed, err)
	}
}

func TestLoginThrottle_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	throttle := NewLoginThrottle(client, 1, time.Minute)
	allowed, err := throttle.Hit(context.Background(), "1.2.3.4")
	if err == nil || !allowed {
		t.Fatalf("Hit = %v, %v; want allowed with error", allowed, err)
	}

	app := fiber.New()
	app.Post("/admin/login", throttle.Handler(), ok)
	for i := 0; i < 3; i++ {
		if code := send(t, app, httptest.NewRequest(http.MethodPost, "/admin/login", nil)); code != fiber.StatusOK {
			t.Fatalf("attempt %d with redis down: %d", i, code)
		}
	}
}

func TestRateLimit(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit(rate.NewLimiter(rate.Every(time.Hour), 2)))
	app.Get("/", ok)

	for i := 0; i < 2; i++ {
		if code := send(t, app, httptest.NewRequest(http.MethodGet, "/", nil)); code != fiber.StatusOK {
			t.Fatalf("request %d: %d", i, code)
		}
	}
	if code := send(t, app, httptest.NewRequest(http.MethodGet, "/", nil)); code != fiber.StatusTooManyRequests {
		t.Fatalf("over budget: %d", code)
	}
}

func TestServiceTokenAuth(t *testing.T) {
	app := fiber.New()
	app.Post("/feed", ServiceTokenAuth("s3cret"), ok)

	for token, want := range map[string]int{
		"":       fiber.StatusUnauthorized,
		"wrong":  fiber.StatusUnauthorized,
		"s3cret": fiber.StatusOK,
	} {
		req := httptest.NewRequest(http.MethodPost, "/feed", nil)
		if token != "" {
			req.Header.Set("X-Service-Token", token)
		}
		if code := send(t, app, req); code != want {
			t.Errorf("token %q: %d, want %d", token, code, want)
		}
	}

	closed := fiber.New()
	closed.Post("/feed", ServiceTokenAuth(""), ok)
	req := httptest.NewRequest(http.MethodPost, "/feed", nil)
	req.Header.Set("X-Service-Token", "anything")
	if code := send(t, closed, req); code != fiber.StatusUnauthorized {
		t.Fatalf("empty expected token must reject: %d", code)
	}
}

type stubVerifier struct {
	admin *models.AdminUser
	err   error
}

func (s stubVerifier) Verify(_ context.Context, token string) (*models.AdminUser, error) {
	if token != "good" {
		return nil, services.ErrUnauthorized
	}
	return s.admin, s.err
}

func TestAdminAuth(t *testing.T) {
	admin := &models.AdminUser{ID: "a1", Username: "ops"}
	app := fiber.New()
	app.Get("/me", AdminAuth(stubVerifier{admin: admin}), func(c *fiber.Ctx) error {
		return c.SendString(CurrentAdmin(c).Username)
	})
	broken := fiber.New()
	broken.Get("/me", AdminAuth(stubVerifier{err: errors.New("db down")}), ok)

	bearer := httptest.NewRequest(http.MethodGet, "/me", nil)
	bearer.Header.Set("Authorization", "Bearer good")
	cookie := httptest.NewRequest(http.MethodGet, "/me", nil)
	cookie.AddCookie(&http.Cookie{Name: SessionCookie, Value: "good"})
	badCookie := httptest.NewRequest(http.MethodGet, "/me", nil)
	badCookie.AddCookie(&http.Cookie{Name: SessionCookie, Value: "bad"})

	cases := []struct {
		name string
		app  *fiber.App
		req  *http.Request
		want int
	}{
		{"no token", app, httptest.NewRequest(http.MethodGet, "/me", nil), fiber.StatusUnauthorized},
		{"bearer", app, bearer, fiber.StatusOK},
		{"cookie", app, cookie, fiber.StatusOK},
		{"rejected cookie", app, badCookie, fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		if code := send(t, tc.app, tc.req); code != tc.want {
			t.Errorf("%s: %d, want %d", tc.name, code, tc.want)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	if code := send(t, broken, req); code != fiber.StatusInternalServerError {
		t.Fatalf("verifier failure: %d, want 500", code)
	}
}
