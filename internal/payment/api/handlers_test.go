package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"ridepay/internal/common/middleware"
	"ridepay/internal/payment"
	"ridepay/internal/payment/session"
	"ridepay/internal/payment/status"
	"ridepay/internal/payment/stepup"
	"ridepay/internal/payment/vault"
	"ridepay/internal/timer/timertest"
)

type stubAuthorizer struct {
	outcome payment.Outcome
	last    payment.Request
}

func (a *stubAuthorizer) Submit(ctx context.Context, req payment.Request) payment.Outcome {
	a.last = req
	if problems := req.Validate(); len(problems) > 0 {
		return payment.ValidationFailed(problems...)
	}
	return a.outcome
}

type pendingChecker struct{}

func (pendingChecker) PaymentStatus(context.Context, string) (int, error) { return 1, nil }

type testServer struct {
	srv   *httptest.Server
	auth  *stubAuthorizer
	sched *timertest.Scheduler
	vault *vault.Memory
}

func newTestServer(t *testing.T, outcome payment.Outcome) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := &testServer{
		auth:  &stubAuthorizer{outcome: outcome},
		sched: timertest.New(),
		vault: vault.NewMemory(),
	}
	mgr := session.NewManager(session.Deps{
		Authorizer: ts.auth,
		Poller:     status.NewPoller(pendingChecker{}, ts.sched, status.Config{Interval: 3 * time.Second}, logger),
		Vault:      ts.vault,
		Scheduler:  ts.sched,
		Config: session.Config{
			DirectDeadline: 180 * time.Second,
			StepUpDeadline: 300 * time.Second,
			GraceDelay:     2 * time.Second,
		},
		Logger: logger,
	})

	r := chi.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Mount("/api/v1", NewHandler(mgr, ts.vault, logger).Routes())
	ts.srv = httptest.NewServer(r)
	t.Cleanup(func() {
		ts.srv.Close()
		mgr.Close()
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env.Data
}

const newCardBody = `{
	"amount": {"amount_minor": 3500, "currency": "SAR"},
	"new_card": {
		"number": "4111111111111111",
		"holder": "Sara Ali",
		"expiry_month": "09",
		"expiry_year": "2030",
		"cvv": "123",
		"billing": {"street": "King Fahd Rd", "city": "Riyadh", "country": "SA"}
	},
	"customer_email": "sara@example.com"
}`

const paymentPath = "/api/v1/bookings/bk-1/payment"

func TestStepUpFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t, payment.StepUpRequired(payment.StepUp{
		URL:    "https://issuer/3ds",
		Fields: []payment.FormField{{Name: "PaReq", Value: "xyz"}, {Name: "MD", Value: "42"}},
	}, "reg-1"))

	resp := ts.do(t, http.MethodPost, paymentPath, newCardBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	snap := decodeData[session.Snapshot](t, resp)
	require.Equal(t, payment.StateAwaitingStepUp, snap.State)
	require.Equal(t, "https://issuer/3ds", snap.StepUp.URL)
	require.Equal(t, "bk-1", ts.auth.last.BookingID)

	resp = ts.do(t, http.MethodGet, paymentPath+"/step-up", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	html, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(html), `action="https://issuer/3ds"`)
	require.Contains(t, string(html), `<input type="hidden" name="PaReq" value="xyz"><input type="hidden" name="MD" value="42">`)

	ts.sched.Advance(45 * time.Second)
	resp = ts.do(t, http.MethodGet, paymentPath, "")
	require.Equal(t, payment.StateAwaitingStepUp, decodeData[session.Snapshot](t, resp).State)
	require.Zero(t, ts.sched.Pending())

	resp = ts.do(t, http.MethodPost, paymentPath+"/navigation", `{"url":"https://issuer/3ds/success"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	nav := decodeData[NavigationResponse](t, resp)
	require.Equal(t, stepup.Success, nav.Classification)
	require.Equal(t, payment.StatePolling, nav.Session.State)

	resp = ts.do(t, http.MethodGet, paymentPath+"/step-up", "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/v1/cards?customer_email=sara@example.com", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cards := decodeData[[]payment.SavedCard](t, resp)
	require.Len(t, cards, 1)
	require.Equal(t, "411111******1111", cards[0].MaskedNumber)

	ts.sched.Advance(300 * time.Second)
	resp = ts.do(t, http.MethodGet, paymentPath, "")
	require.Equal(t, payment.StateTimedOut, decodeData[session.Snapshot](t, resp).State)
}

func TestValidationFailureIsASessionResult(t *testing.T) {
	ts := newTestServer(t, payment.Approved(""))

	body := strings.Replace(newCardBody, `"cvv": "123"`, `"cvv": "1"`, 1)
	resp := ts.do(t, http.MethodPost, paymentPath, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	snap := decodeData[session.Snapshot](t, resp)
	require.Equal(t, payment.StateDeclined, snap.State)
	require.Equal(t, payment.OutcomeValidationFailed, snap.Result.Kind)
	require.Equal(t, []string{"new_card.cvv: Must be at least 3"}, snap.Result.Messages)
}

func TestSubmitRejectsMalformedBody(t *testing.T) {
	ts := newTestServer(t, payment.Approved(""))

	resp := ts.do(t, http.MethodPost, paymentPath, `{"amount":`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, paymentPath, `{"registration_id":"reg-1"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVaultedCardResolution(t *testing.T) {
	ts := newTestServer(t, payment.Approved(""))
	require.NoError(t, ts.vault.SaveCards(context.Background(), "sara@example.com",
		[]payment.SavedCard{{ID: "card-1", RegistrationID: "reg-55"}}))

	body := `{"amount":{"amount_minor":1000,"currency":"SAR"},
		"vaulted_card":{"card_id":"card-1","cvv":"123"},"customer_email":"sara@example.com"}`
	resp := ts.do(t, http.MethodPost, paymentPath, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, payment.StatePolling, decodeData[session.Snapshot](t, resp).State)
	require.Equal(t, "reg-55", ts.auth.last.VaultedCard.RegistrationID)

	body = strings.Replace(body, "card-1", "card-404", 1)
	resp = ts.do(t, http.MethodPost, paymentPath, body)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCancelAndRelease(t *testing.T) {
	ts := newTestServer(t, payment.Approved(""))

	resp := ts.do(t, http.MethodGet, paymentPath, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, paymentPath, newCardBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, paymentPath+"/cancel", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, payment.StateCancelled, decodeData[session.Snapshot](t, resp).State)
	require.Zero(t, ts.sched.Pending())

	resp = ts.do(t, http.MethodPost, paymentPath+"/cancel", "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, paymentPath, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, paymentPath, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResubmitSupersedesRunningSession(t *testing.T) {
	ts := newTestServer(t, payment.Approved(""))

	first := decodeData[session.Snapshot](t, ts.do(t, http.MethodPost, paymentPath, newCardBody))
	second := decodeData[session.Snapshot](t, ts.do(t, http.MethodPost, paymentPath, newCardBody))
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, 3, ts.sched.Pending())

	current := decodeData[session.Snapshot](t, ts.do(t, http.MethodGet, paymentPath, ""))
	require.Equal(t, second.ID, current.ID)
}
