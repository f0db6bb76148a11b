// Package backend предоставляет клиент для внешнего аналитического бэкенда.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/team089/optimal-cashback/internal/model"
)

// StatusAuthorized — статус банка, согласия которого одобрены.
const StatusAuthorized = "authorized"

// Client инкапсулирует HTTP-взаимодействие с аналитическим бэкендом.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// BankStatus описывает статус подключения одного банка.
type BankStatus struct {
	BankName string `json:"bank_name"`
	Status   string `json:"status"`
}

// ConfirmedOffer описывает одно предложение кэшбэка в запросе подтверждения.
type ConfirmedOffer struct {
	BankName string  `json:"bank_name"`
	Category string  `json:"category"`
	Percent  float64 `json:"percent"`
	Choosen  string  `json:"choosen"`
	TotalCB  float64 `json:"total_cb"`
}

// NewClient создаёт HTTP-клиент бэкенда по указанному адресу.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc.StandardClient(),
		logger:     logger,
	}
}

func (c *Client) url(path string) string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path
}

// SelectBanks отправляет выбранные банки и возвращает статусы их подключения.
func (c *Client) SelectBanks(ctx context.Context, login string, bankNames []string) ([]BankStatus, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("backend client not configured")
	}

	lowered := make([]string, 0, len(bankNames))
	for _, name := range bankNames {
		lowered = append(lowered, strings.ToLower(name))
	}

	reqBody, err := json.Marshal(struct {
		UserLogin     string   `json:"user_login"`
		SelectedBanks []string `json:"selected_banks"`
	}{
		UserLogin:     login,
		SelectedBanks: lowered,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var result struct {
		Statuses []BankStatus `json:"statuses"`
	}
	if err := c.post(ctx, "/api/select_banks", reqBody, &result); err != nil {
		return nil, err
	}

	return result.Statuses, nil
}

// offerRow — строка результатов анализа в виде, присылаемом бэкендом.
type offerRow struct {
	BankName string  `json:"bank_name"`
	Category string  `json:"category"`
	Percent  float64 `json:"percent"`
	Choosen  string  `json:"choosen"`
	TotalCB  float64 `json:"total_cb"`
}

// AnalysisResults запрашивает результаты анализа трат для указанного логина.
// Поле results приходит строкой с JSON-массивом; некорректные строки массива
// пропускаются с предупреждением, а не прерывают разбор.
func (c *Client) AnalysisResults(ctx context.Context, login string) ([]model.CashbackOffer, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("backend client not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/analysis_results/"+login), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var payload struct {
		Results string `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(payload.Results), &rows); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}

	offers := make([]model.CashbackOffer, 0, len(rows))
	for _, raw := range rows {
		var row offerRow
		if err := json.Unmarshal(raw, &row); err != nil || row.BankName == "" || row.Category == "" {
			c.logger.Warn("skipping malformed analysis row", zap.Error(err), zap.ByteString("row", raw))
			continue
		}
		offers = append(offers, model.CashbackOffer{
			ID:            OfferID(row.BankName, row.Category),
			Category:      row.Category,
			Percent:       row.Percent,
			Chosen:        row.Choosen == "yes",
			TotalCashback: row.TotalCB,
			BankName:      row.BankName,
		})
	}

	return offers, nil
}

// ConfirmCashbacks отправляет итоговый выбор кэшбэков и возвращает историю
// транзакций, сгруппированную по категориям.
func (c *Client) ConfirmCashbacks(ctx context.Context, login string, offers []ConfirmedOffer) (map[string][]model.Transaction, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("backend client not configured")
	}

	results, err := json.Marshal(offers)
	if err != nil {
		return nil, fmt.Errorf("marshal results: %w", err)
	}

	reqBody, err := json.Marshal(struct {
		UserLogin string `json:"user_login"`
		Results   string `json:"results"`
	}{
		UserLogin: login,
		Results:   string(results),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var transactions map[string][]model.Transaction
	if err := c.post(ctx, "/api/confirm_cashbacks", reqBody, &transactions); err != nil {
		return nil, err
	}

	return transactions, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// OfferID строит идентификатор предложения из имени банка и категории,
// схлопывая пробелы в дефисы.
func OfferID(bankName, category string) string {
	return strings.Join(strings.Fields(bankName+"-"+category), "-")
}
