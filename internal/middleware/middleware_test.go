package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/midiconv/internal/auth"
)

func whoami(c *fiber.Ctx) error {
	return c.SendString(GetUserID(c) + "/" + GetTenant(c))
}

func TestAuthMiddleware(t *testing.T) {
	secret := "test-secret"
	token, err := auth.SignLegacyToken(secret, "user-1", "", "team-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	app := fiber.New()
	app.Get("/me", NewAuthMiddleware(auth.NewAuthenticator(nil, secret)).Authenticate(), whoami)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid", "Bearer " + token, 200, "user-1/team-1"},
		{"missing", "", 401, ""},
		{"garbage", "Bearer nope", 401, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if tt.wantBody != "" {
				body, _ := io.ReadAll(resp.Body)
				if string(body) != tt.wantBody {
					t.Errorf("expected %q, got %q", tt.wantBody, body)
				}
			}
		})
	}
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/me", GatewayAuthMiddleware(), whoami)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("X-User-Id", "user-7")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "user-7/user-7" {
		t.Errorf("expected tenant to default to user id, got %q", body)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/me", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 401 {
		t.Errorf("expected 401 without headers, got %d", resp.StatusCode)
	}
}

func TestRateLimiter_NilClientPassesThrough(t *testing.T) {
	app := fiber.New()
	app.Get("/x", NewRateLimiter(nil).ConvertLimit(1), func(c *fiber.Ctx) error {
		return c.SendStatus(204)
	})
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/x", nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 204 {
			t.Fatalf("request %d: expected 204, got %d", i, resp.StatusCode)
		}
	}
}
