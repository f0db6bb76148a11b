// Package handler содержит HTTP-обработчики API сервиса оптимального кэшбэка.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/team089/optimal-cashback/internal/middleware"
	"github.com/team089/optimal-cashback/internal/model"
	"github.com/team089/optimal-cashback/internal/session"
	"github.com/team089/optimal-cashback/internal/validation"
)

// Sessions определяет контракт менеджера сессий, используемый HTTP-обработчиками.
type Sessions interface {
	Login(ctx context.Context, login string) (*session.Session, error)
	QuickLogin(ctx context.Context) (*session.Session, error)
	Get(login string) (*session.Session, bool)
	Logout(ctx context.Context, login string)
}

// Handler реализует HTTP-обработчики API сервиса оптимального кэшбэка.
type Handler struct {
	sessions       Sessions
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(sessions Sessions, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		sessions:       sessions,
		logger:         logger,
		authMiddleware: auth,
	}
}

type stateResponse struct {
	session.State
	Catalog       []model.Bank `json:"catalog"`
	AllCategories []string     `json:"allCategories"`
	AnalysisError string       `json:"analysisError,omitempty"`
}

func (h *Handler) writeState(w http.ResponseWriter, s *session.Session) {
	resp := stateResponse{
		State:         s.Snapshot(),
		Catalog:       model.Catalog(),
		AllCategories: s.AllCategories(),
		AnalysisError: s.LastAnalysisError(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	login, ok := middleware.GetLoginFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, false
	}

	s, ok := h.sessions.Get(login)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, false
	}

	return s, true
}

type loginRequest struct {
	Login string `json:"login"`
}

// Login открывает сессию пользователя и устанавливает cookie авторизации.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	s, err := h.sessions.Login(r.Context(), req.Login)
	if err != nil {
		if errors.Is(err, validation.ErrInvalidLogin) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("login error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, req.Login)
	h.writeState(w, s)
}

// QuickLogin открывает демонстрационную сессию с предвыбранными банками.
func (h *Handler) QuickLogin(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.QuickLogin(r.Context())
	if err != nil {
		h.logger.Error("quick login error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, s.Login())
	h.writeState(w, s)
}

// Logout завершает сессию, стирает её состояние и сбрасывает cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	login, ok := middleware.GetLoginFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.sessions.Logout(r.Context(), login)
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// GetState возвращает полное состояние сессии.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	h.writeState(w, s)
}

type bankRequest struct {
	BankID int `json:"bank_id"`
}

// ToggleBank добавляет банк в выбранные или убирает его.
func (h *Handler) ToggleBank(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req bankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := s.ToggleBank(r.Context(), req.BankID); err != nil {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	h.writeState(w, s)
}

// ApproveConsent одобряет согласия одного банка.
func (h *Handler) ApproveConsent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req bankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := s.ApproveConsent(r.Context(), req.BankID); err != nil {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	h.writeState(w, s)
}

// RefreshConsents запрашивает статусы согласий у бэкенда.
func (h *Handler) RefreshConsents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	if err := s.RefreshConsents(r.Context()); err != nil {
		h.logger.Error("refresh consents error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	h.writeState(w, s)
}

// ConfirmBanks завершает выбор банков.
func (h *Handler) ConfirmBanks(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	s.ConfirmBanks(r.Context())
	h.writeState(w, s)
}

// RequestAnalysis запускает анализ трат по явному действию пользователя.
func (h *Handler) RequestAnalysis(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	if err := s.RequestAnalysis(r.Context()); err != nil {
		if errors.Is(err, session.ErrBanksNotReady) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("request analysis error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeState(w, s)
}

type cashbackRequest struct {
	BankName string `json:"bank_name"`
	OfferID  string `json:"offer_id"`
}

// ToggleCashback переключает выбор предложения кэшбэка.
func (h *Handler) ToggleCashback(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req cashbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	s.ToggleCashback(r.Context(), req.BankName, req.OfferID)
	h.writeState(w, s)
}

// ToggleExpanded переключает признак раскрытия карточки банка.
func (h *Handler) ToggleExpanded(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req bankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	s.ToggleExpanded(r.Context(), req.BankID)
	h.writeState(w, s)
}

// SelectBank открывает экран банка.
func (h *Handler) SelectBank(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req bankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := s.SelectBank(r.Context(), req.BankID); err != nil {
		switch {
		case errors.Is(err, session.ErrUnknownBank):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, session.ErrConsentNotApproved), errors.Is(err, session.ErrNotAnalyzed):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("select bank error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	h.writeState(w, s)
}

type categoryRequest struct {
	Category string `json:"category"`
}

// SelectCategory открывает историю транзакций категории.
func (h *Handler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Category == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	s.SelectCategory(r.Context(), req.Category)
	h.writeState(w, s)
}

// BackToMain возвращает сессию на главный экран.
func (h *Handler) BackToMain(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	s.BackToMain(r.Context())
	h.writeState(w, s)
}

// ConfirmCashbacks подтверждает итоговый выбор кэшбэков.
func (h *Handler) ConfirmCashbacks(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	if err := s.ConfirmCashbacks(r.Context()); err != nil {
		if errors.Is(err, session.ErrNotReadyToConfirm) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("confirm cashbacks error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	h.writeState(w, s)
}

type optimalCardResponse struct {
	Category string  `json:"category"`
	BankName string  `json:"bankName,omitempty"`
	Percent  float64 `json:"percent,omitempty"`
	Found    bool    `json:"found"`
}

// OptimalCard возвращает лучший банк для оплаты в указанной категории.
func (h *Handler) OptimalCard(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	category := r.URL.Query().Get("category")
	if category == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	bankName, percent, found := s.BestBankForCategory(category)
	resp := optimalCardResponse{
		Category: category,
		BankName: bankName,
		Percent:  percent,
		Found:    found,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type categoryTransactionsResponse struct {
	Category     string                `json:"category"`
	Summary      model.CategorySummary `json:"summary"`
	Transactions []model.Transaction   `json:"transactions"`
}

// CategoryTransactions возвращает транзакции и сводку одной категории.
func (h *Handler) CategoryTransactions(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	category := r.URL.Query().Get("category")
	if category == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	transactions := s.TransactionsForCategory(category)
	if transactions == nil {
		transactions = []model.Transaction{}
	}

	resp := categoryTransactionsResponse{
		Category:     category,
		Summary:      s.CategorySummaries()[category],
		Transactions: transactions,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type incomeResponse struct {
	Current   float64 `json:"current"`
	Predicted float64 `json:"predicted"`
}

// Income возвращает текущий и прогнозируемый доход от кэшбэков.
func (h *Handler) Income(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}

	resp := incomeResponse{
		Current:   s.CurrentIncome(),
		Predicted: s.PredictedIncome(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
