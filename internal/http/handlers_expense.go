package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/services"
	"spendlog/internal/stats"
	"spendlog/internal/store"
)

type createExpenseRequest struct {
	Amount      flexString `json:"amount"`
	CategoryID  string     `json:"categoryId"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
}

type categoryRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// expenseView is an expense with its category resolved for display.
type expenseView struct {
	core.Expense
	Category *categoryRef `json:"category,omitempty"`
}

// MarshalJSON keeps the category next to the expense fields; the embedded
// Expense marshaler would otherwise drop it.
func (v expenseView) MarshalJSON() ([]byte, error) {
	type expense core.Expense
	return json.Marshal(struct {
		expense
		Amount   json.Number  `json:"amount"`
		Category *categoryRef `json:"category,omitempty"`
	}{expense(v.Expense), core.JSONAmount(v.Amount), v.Category})
}

func newExpenseView(e core.Expense, byID map[string]core.Category) expenseView {
	v := expenseView{Expense: e}
	if c, ok := byID[e.CategoryID]; ok {
		v.Category = &categoryRef{ID: c.ID, Name: c.Name, Color: c.Color}
	}
	return v
}

func indexCategories(cats []core.Category) map[string]core.Category {
	byID := make(map[string]core.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}
	return byID
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()
	userID := principal(r).UserID

	expenses, err := s.svc.Expenses.List(ctx, userID, r.URL.Query().Get("categoryId"))
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentExpense, applog.OpList)
		return
	}
	cats, err := s.svc.Categories.List(ctx, userID)
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentExpense, applog.OpList)
		return
	}

	byID := indexCategories(cats)
	out := make([]expenseView, len(expenses))
	for i, e := range expenses {
		out[i] = newExpenseView(e, byID)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	userID := principal(r).UserID

	e, err := s.svc.Expenses.Create(ctx, userID, services.CreateExpenseRequest{
		Amount:      string(req.Amount),
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Date:        req.Date,
	})
	if errors.Is(err, services.ErrCategoryNotFound) {
		writeError(w, http.StatusNotFound, "Category not found")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentExpense, applog.OpCreate)
		return
	}

	s.events.LogExpenseCreated(ctx, userID, e.ID, e.CategoryID, e.Amount.String())

	cats, err := s.svc.Categories.List(ctx, userID)
	if err != nil {
		s.events.LogError(ctx, "Failed to load categories for created expense", err,
			applog.ComponentCategory, applog.OpList, applog.NewFields().WithUser(userID).WithExpense(e.ID, e.CategoryID, e.Amount.String()))
	}
	writeJSON(w, http.StatusCreated, newExpenseView(e, indexCategories(cats)))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	err := s.svc.Expenses.Delete(ctx, principal(r).UserID, r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Expense not found")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentExpense, applog.OpDelete)
		return
	}
	writeMessage(w, http.StatusOK, "Expense deleted successfully")
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := core.ParsePeriod(q.Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period. Must be daily, weekly, or monthly")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	res, err := s.svc.Stats.Stats(ctx, principal(r).UserID, services.StatsQuery{
		Period:     period,
		Date:       q.Get("date"),
		CategoryID: q.Get("categoryId"),
		Page:       queryInt(q, "page", stats.DefaultPage, 0),
		PageSize:   queryInt(q, "limit", stats.DefaultPageSize, stats.MaxPageSize),
	})
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentStats, applog.OpRead)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	totals, err := s.svc.Stats.Summary(ctx, principal(r).UserID)
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentStats, applog.OpRead)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}
