package faucet

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/winlew/winlew_agent/internal/transfer"
)

func newTestApp(f *fixture) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("requester_id", c.Get("X-Requester-ID"))
		return c.Next()
	})
	h := NewHandler(f.svc)
	app.Post("/faucet", h.Faucet)
	app.Post("/send", h.Send)
	return app
}

func call(t *testing.T, app *fiber.App, path, requester, address string) (int, map[string]any, http.Header) {
	t.Helper()
	body := `{"address":"` + address + `"}`
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Requester-ID", requester)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	} else {
		out["error"] = string(raw)
	}
	return resp.StatusCode, out, resp.Header
}

func TestHandlerFaucetSuccess(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	status, body, _ := call(t, app, "/faucet", "u1", "alice")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 got %d (%v)", status, body)
	}
	if body["signature"] != "sig-1" || body["explorer_url"] != explorerTxURL+"sig-1" {
		t.Fatalf("unexpected body %v", body)
	}
	if !strings.HasPrefix(body["message"].(string), "💧 Dripped!") {
		t.Fatalf("unexpected message %v", body["message"])
	}
}

func TestHandlerFaucetRejections(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	if status, _, _ := call(t, app, "/faucet", "u1", ""); status != fiber.StatusBadRequest {
		t.Fatalf("empty address: expected 400 got %d", status)
	}
	if status, body, _ := call(t, app, "/faucet", "u1", "nobody.sol"); status != fiber.StatusBadRequest || !strings.Contains(body["error"].(string), "Invalid address") {
		t.Fatalf("bad domain: got %d %v", status, body)
	}

	call(t, app, "/faucet", "u1", "alice")
	status, body, _ := call(t, app, "/faucet", "u2", "alice")
	if status != fiber.StatusTooManyRequests || !strings.Contains(body["error"].(string), "already claimed") {
		t.Fatalf("ledger: got %d %v", status, body)
	}

	f.now = f.now.Add(time.Hour)
	status, body, header := call(t, app, "/faucet", "u1", "bob")
	if status != fiber.StatusTooManyRequests || !strings.Contains(body["error"].(string), "Please wait ~23h") {
		t.Fatalf("cooldown: got %d %v", status, body)
	}
	if header.Get(fiber.HeaderRetryAfter) == "" {
		t.Fatal("cooldown rejection should carry Retry-After")
	}
}

func TestHandlerMissingRecipientAccount(t *testing.T) {
	f := newFixture(t)
	f.transferer.err = transfer.ErrMissingRecipientAccount
	app := newTestApp(f)

	status, body, _ := call(t, app, "/faucet", "u1", "alice")
	if status != fiber.StatusUnprocessableEntity || !strings.Contains(body["error"].(string), "No ATA Account") {
		t.Fatalf("got %d %v", status, body)
	}
}

func TestHandlerSend(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	if status, _, _ := call(t, app, "/send", "u1", "alice"); status != fiber.StatusForbidden {
		t.Fatalf("non-moderator: expected 403 got %d", status)
	}
	if status, _, _ := call(t, app, "/send", "mod", "custodial"); status != fiber.StatusBadRequest {
		t.Fatalf("self send: expected 400 got %d", status)
	}

	f.transferer.err = errors.New("TransactionExpiredBlockheightExceededError")
	status, body, _ := call(t, app, "/send", "mod", "alice")
	if status != fiber.StatusGatewayTimeout || !strings.Contains(body["error"].(string), "Transaction expired") {
		t.Fatalf("expiry: got %d %v", status, body)
	}
}

func TestHandlerSendSuccess(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	status, body, _ := call(t, app, "/send", "mod", "bob")
	if status != fiber.StatusOK {
		t.Fatalf("expected 200 got %d (%v)", status, body)
	}
	if !strings.HasPrefix(body["message"].(string), "✅ Sent 1000 WinLEW!") {
		t.Fatalf("unexpected message %v", body["message"])
	}
}

func TestHandlerUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.transferer.err = errors.New("rpc unavailable")
	app := newTestApp(f)

	status, body, _ := call(t, app, "/faucet", "u1", "alice")
	if status != fiber.StatusBadGateway || !strings.HasPrefix(body["error"].(string), "❌") {
		t.Fatalf("got %d %v", status, body)
	}
}

func TestHandlerUnrecordedClaimCarriesSignature(t *testing.T) {
	f := newFixture(t)
	f.svc.claims = failingLedger{ClaimLedger: f.claims}
	app := newTestApp(f)

	status, body, _ := call(t, app, "/faucet", "u1", "alice")
	if status != fiber.StatusInternalServerError {
		t.Fatalf("expected 500 got %d (%v)", status, body)
	}
	if body["signature"] != "sig-1" || !strings.HasPrefix(body["message"].(string), "⚠️ Tokens were sent") {
		t.Fatalf("unexpected body %v", body)
	}
}
