package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"tracker/internal/aggregate"
	"tracker/internal/core"
)

const maxBodyBytes = 1 << 16

// Amounts are encoded by decimal as JSON strings so no precision is lost.

type transactionDTO struct {
	Concept     string          `json:"concept"`
	Value       decimal.Decimal `json:"value"`
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Store       bool            `json:"store"`
}

func toTransactionDTO(t core.Transaction) transactionDTO {
	return transactionDTO{
		Concept:     t.Concept,
		Value:       t.Value,
		Date:        t.Date.String(),
		Category:    t.Category,
		Subcategory: t.Subcategory,
		Store:       t.Store,
	}
}

func toTransactionDTOs(txs []core.Transaction) []transactionDTO {
	out := make([]transactionDTO, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionDTO(t))
	}
	return out
}

// recordRequest is the body of POST /api/transactions. Value accepts a JSON
// number or a numeric string. Store defaults to true.
type recordRequest struct {
	Concept     string          `json:"concept"`
	Value       json.RawMessage `json:"value"`
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory"`
	Store       *bool           `json:"store"`
}

func (req recordRequest) transaction() (core.Transaction, error) {
	raw := string(req.Value)
	var quoted string
	if json.Unmarshal(req.Value, &quoted) == nil {
		raw = quoted
	}
	value, err := core.ParseAmount(raw)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("value %q: %w", raw, err)
	}
	date, err := core.ParseDate(sanitizeInput(req.Date))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("date %q: %w", req.Date, err)
	}
	store := true
	if req.Store != nil {
		store = *req.Store
	}
	return core.Transaction{
		Concept:     sanitizeInput(req.Concept),
		Value:       value,
		Date:        date,
		Category:    sanitizeInput(req.Category),
		Subcategory: sanitizeInput(req.Subcategory),
		Store:       store,
	}, nil
}

type balanceDTO struct {
	Opening decimal.Decimal `json:"opening"`
	Total   decimal.Decimal `json:"total"`
	Max     decimal.Decimal `json:"max"`
	Min     decimal.Decimal `json:"min"`
	Closing decimal.Decimal `json:"closing"`
}

func toBalanceDTO(b core.Balance) balanceDTO {
	return balanceDTO{Opening: b.Opening, Total: b.Total, Max: b.Max, Min: b.Min, Closing: b.Closing}
}

type categoryDTO struct {
	Category  string          `json:"category"`
	Value     decimal.Decimal `json:"value"`
	Magnitude decimal.Decimal `json:"magnitude"`
	Kind      core.Kind       `json:"kind"`
	Color     string          `json:"color"`
}

func (s *Server) toCategoryDTOs(bars []core.CategoryBar) []categoryDTO {
	out := make([]categoryDTO, 0, len(bars))
	for _, b := range bars {
		out = append(out, categoryDTO{
			Category:  b.Category,
			Value:     b.Value,
			Magnitude: b.Magnitude,
			Kind:      b.Kind,
			Color:     s.palette.ColorFor(b.Kind),
		})
	}
	return out
}

type monthDTO struct {
	Month string          `json:"month"`
	Open  decimal.Decimal `json:"open"`
	Close decimal.Decimal `json:"close"`
	Max   decimal.Decimal `json:"max"`
	Min   decimal.Decimal `json:"min"`
	Total decimal.Decimal `json:"total"`
}

type typeDTO struct {
	Kind  core.Kind       `json:"kind"`
	Value decimal.Decimal `json:"value"`
	Color string          `json:"color"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	l := s.ledger.Snapshot()
	from, to, ok, err := dateRange(r, l)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ok {
		l = l.FilterByDateRange(from, to)
	}
	txs := l.Transactions()
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": toTransactionDTOs(txs),
		"count":        len(txs),
	})
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req recordRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, badRequest("invalid JSON body: %v", err))
		return
	}
	t, err := req.transaction()
	if err != nil {
		writeError(w, r, err)
		return
	}
	recorded, err := s.ledger.Record(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.recorded.Inc()
	writeJSON(w, http.StatusCreated, toTransactionDTO(recorded))
}

func (s *Server) handleConcepts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Concepts())
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	bars := s.ledger.CategoryBars()

	from, to, ok, err := dateRange(r, s.ledger.Snapshot())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ok {
		bars = aggregate.CategoryBars(s.ledger.Range(from, to), s.ledger.Investments())
	}
	writeJSON(w, http.StatusOK, s.toCategoryDTOs(bars))
}

func (s *Server) handleCategoryPie(w http.ResponseWriter, r *http.Request) {
	withInvestments, err := queryBool(r, "investments")
	if err != nil {
		writeError(w, r, err)
		return
	}
	withEarnings, err := queryBool(r, "earnings")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toCategoryDTOs(s.ledger.ExpenseSlices(withInvestments, withEarnings)))
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	series := s.ledger.MonthlySeries()
	out := make([]monthDTO, 0, len(series))
	for _, p := range series {
		out = append(out, monthDTO{
			Month: core.YearMonth{Year: p.Year, Month: p.Month}.String(),
			Open:  p.Open,
			Close: p.Close,
			Max:   p.Max,
			Min:   p.Min,
			Total: p.Total,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	year, month, err := pathYearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opening, err := queryAmount(r, "opening")
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.ledger.MonthlySummary(month, year, opening)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

func (s *Server) handleMonthExpenses(w http.ResponseWriter, r *http.Request) {
	year, month, err := pathYearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ex, err := s.ledger.MonthlyExpenseExtremes(month, year)
	if errors.Is(err, core.ErrEmptyResult) {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error: "no expenses in " + core.YearMonth{Year: year, Month: month}.String(),
		})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total": ex.Total,
		"max":   toTransactionDTO(ex.Max),
		"min":   toTransactionDTO(ex.Min),
	})
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("date")
	d, err := core.ParseDate(raw)
	if err != nil {
		writeError(w, r, badRequest("date %q is not a date", raw))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":         d.String(),
		"summary":      toBalanceDTO(s.ledger.DailySummary(d)),
		"transactions": toTransactionDTOs(s.ledger.Snapshot().TransactionsOn(d)),
	})
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	t := s.ledger.TypeTotals()
	writeJSON(w, http.StatusOK, []typeDTO{
		{Kind: core.KindEarning, Value: t.Earnings, Color: s.palette.ColorFor(core.KindEarning)},
		{Kind: core.KindExpense, Value: t.Expenses, Color: s.palette.ColorFor(core.KindExpense)},
		{Kind: core.KindInvestment, Value: t.Investments, Color: s.palette.ColorFor(core.KindInvestment)},
	})
}
