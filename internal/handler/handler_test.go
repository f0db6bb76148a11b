package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/team089/optimal-cashback/internal/backend"
	"github.com/team089/optimal-cashback/internal/middleware"
	"github.com/team089/optimal-cashback/internal/model"
	"github.com/team089/optimal-cashback/internal/session"
	"github.com/team089/optimal-cashback/internal/storage"
)

type stubBackend struct {
	statuses    []backend.BankStatus
	statusesErr error

	offers    []model.CashbackOffer
	offersErr error

	confirmResp map[string][]model.Transaction
	confirmErr  error
}

func (b *stubBackend) SelectBanks(ctx context.Context, login string, bankNames []string) ([]backend.BankStatus, error) {
	return b.statuses, b.statusesErr
}

func (b *stubBackend) AnalysisResults(ctx context.Context, login string) ([]model.CashbackOffer, error) {
	return b.offers, b.offersErr
}

func (b *stubBackend) ConfirmCashbacks(ctx context.Context, login string, offers []backend.ConfirmedOffer) (map[string][]model.Transaction, error) {
	return b.confirmResp, b.confirmErr
}

func newTestRouter(t *testing.T, client session.Backend) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	manager := session.NewManager(storage.NewMemoryStore(), client, logger, time.Minute)
	t.Cleanup(manager.Close)

	auth := middleware.NewAuthMiddleware("test-secret")
	h := NewHandler(manager, logger, auth)
	return h.SetupRouter()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	r := httptest.NewRequest(method, path, &buf)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		r.AddCookie(c)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func login(t *testing.T, router http.Handler, name string) []*http.Cookie {
	t.Helper()

	w := doJSON(t, router, http.MethodPost, "/api/user/login", map[string]string{"login": name}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d", w.Code, http.StatusOK)
	}

	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("login did not set auth cookie")
	}
	return cookies
}

func TestLogin_ReturnsStateAndCookie(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	w := doJSON(t, router, http.MethodPost, "/api/user/login", map[string]string{"login": "alice"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if len(w.Result().Cookies()) == 0 {
		t.Fatalf("auth cookie was not set")
	}

	var resp struct {
		Login       string       `json:"login"`
		CurrentPage string       `json:"currentPage"`
		Catalog     []model.Bank `json:"catalog"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Login != "alice" {
		t.Fatalf("login = %q, want alice", resp.Login)
	}
	if resp.CurrentPage != string(model.PageBankSelection) {
		t.Fatalf("currentPage = %q, want %q", resp.CurrentPage, model.PageBankSelection)
	}
	if len(resp.Catalog) != 7 {
		t.Fatalf("catalog = %d banks, want 7", len(resp.Catalog))
	}
}

func TestLogin_InvalidLogin(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	w := doJSON(t, router, http.MethodPost, "/api/user/login", map[string]string{"login": "bad login!"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestQuickLogin(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	w := doJSON(t, router, http.MethodPost, "/api/user/quick_login", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Login       string       `json:"login"`
		CurrentPage string       `json:"currentPage"`
		ChosenBanks []model.Bank `json:"chosenBanks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Login != "team089-1" {
		t.Fatalf("login = %q, want team089-1", resp.Login)
	}
	if resp.CurrentPage != string(model.PageMain) {
		t.Fatalf("currentPage = %q, want %q", resp.CurrentPage, model.PageMain)
	}
	if len(resp.ChosenBanks) != 2 {
		t.Fatalf("chosenBanks = %+v, want 2 banks", resp.ChosenBanks)
	}
}

func TestGetState_Unauthorized(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})

	w := doJSON(t, router, http.MethodGet, "/api/user/state", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestToggleBank_Flow(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})
	cookies := login(t, router, "alice")

	w := doJSON(t, router, http.MethodPost, "/api/user/banks/toggle", map[string]int{"bank_id": 20}, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		ChosenBanks  []model.Bank             `json:"chosenBanks"`
		BankConsents map[string]model.Consent `json:"bankConsents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.ChosenBanks) != 1 || resp.ChosenBanks[0].Name != "Sbank" {
		t.Fatalf("chosenBanks = %+v, want Sbank", resp.ChosenBanks)
	}
	if c, ok := resp.BankConsents["20"]; !ok || c.Approved {
		t.Fatalf("bankConsents = %+v, want unapproved record for 20", resp.BankConsents)
	}
}

func TestToggleBank_UnknownBank(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})
	cookies := login(t, router, "alice")

	w := doJSON(t, router, http.MethodPost, "/api/user/banks/toggle", map[string]int{"bank_id": 999}, cookies)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestRequestAnalysis_Conflict(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})
	cookies := login(t, router, "alice")

	doJSON(t, router, http.MethodPost, "/api/user/banks/toggle", map[string]int{"bank_id": 20}, cookies)

	w := doJSON(t, router, http.MethodPost, "/api/user/analysis", nil, cookies)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestApproveConsent_StartsAnalysis(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})
	cookies := login(t, router, "alice")

	doJSON(t, router, http.MethodPost, "/api/user/banks/toggle", map[string]int{"bank_id": 20}, cookies)

	w := doJSON(t, router, http.MethodPost, "/api/user/consents/approve", map[string]int{"bank_id": 20}, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		MainButtonState string `json:"mainButtonState"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.MainButtonState != string(model.ButtonStateAnalyze) {
		t.Fatalf("mainButtonState = %q, want %q", resp.MainButtonState, model.ButtonStateAnalyze)
	}
}

func TestOptimalCard_RequiresCategory(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})
	cookies := login(t, router, "alice")

	w := doJSON(t, router, http.MethodGet, "/api/user/optimal_card", nil, cookies)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestLogout_InvalidatesSession(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})
	cookies := login(t, router, "alice")

	w := doJSON(t, router, http.MethodPost, "/api/user/logout", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want %d", w.Code, http.StatusOK)
	}

	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == "auth_token" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("auth cookie was not cleared")
	}

	// Сессии больше нет, старый cookie не даёт доступа.
	w = doJSON(t, router, http.MethodGet, "/api/user/state", nil, cookies)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("state status after logout = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestIncome(t *testing.T) {
	router := newTestRouter(t, &stubBackend{})
	cookies := login(t, router, "alice")

	w := doJSON(t, router, http.MethodGet, "/api/user/income", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Current   float64 `json:"current"`
		Predicted float64 `json:"predicted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Current != 0 || resp.Predicted != 0 {
		t.Fatalf("income = %+v, want zeros before confirmation", resp)
	}
}
