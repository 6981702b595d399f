package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/cart"
	"github.com/noah-isme/pos-terminal/internal/catalog"
	"github.com/noah-isme/pos-terminal/internal/common"
	"github.com/noah-isme/pos-terminal/internal/customer"
	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/money"
	"github.com/noah-isme/pos-terminal/internal/obs"
	"github.com/noah-isme/pos-terminal/internal/pricing"
	"github.com/noah-isme/pos-terminal/internal/shift"
	"github.com/noah-isme/pos-terminal/internal/split"
	"github.com/noah-isme/pos-terminal/internal/transaction"
)

// One error map per flow. Each maps the flow's sentinels onto the stable
// transport codes clients key off.
var (
	cartErrors = common.ErrorMap{
		{Target: cart.ErrNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
		{Target: cart.ErrInvalidQuantity, Status: http.StatusBadRequest, Code: "BAD_REQUEST"},
		{Target: cart.ErrInvalidDiscount, Status: http.StatusBadRequest, Code: "BAD_REQUEST"},
		{Target: cart.ErrInvalidTax, Status: http.StatusBadRequest, Code: "BAD_REQUEST"},
		{Target: cart.ErrInvalidTip, Status: http.StatusBadRequest, Code: "BAD_REQUEST"},
	}
	splitErrors = common.ErrorMap{
		{Target: ErrSplitActive, Status: http.StatusConflict, Code: "SPLIT_ACTIVE"},
		{Target: ErrSplitNotActive, Status: http.StatusConflict, Code: "SPLIT_NOT_ACTIVE"},
		{Target: split.ErrExceedsRemaining, Status: http.StatusConflict, Code: "EXCEEDS_REMAINING"},
		{Target: split.ErrIncompletePayment, Status: http.StatusConflict, Code: "INCOMPLETE_PAYMENT"},
		{Target: split.ErrEntryNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
		{Target: split.ErrInvalidPayment, Status: http.StatusBadRequest, Code: "BAD_REQUEST"},
	}
	checkoutErrors = common.ErrorMap{
		{Target: transaction.ErrEmptyCart, Status: http.StatusConflict, Code: "EMPTY_CART"},
		{Target: transaction.ErrInsufficientStock, Status: http.StatusConflict, Code: "INSUFFICIENT_STOCK"},
		{Target: split.ErrIncompletePayment, Status: http.StatusBadRequest, Code: "BAD_REQUEST"},
		{Target: split.ErrInvalidPayment, Status: http.StatusBadRequest, Code: "BAD_REQUEST"},
	}
	shiftErrors = common.ErrorMap{
		{Target: shift.ErrShiftAlreadyActive, Status: http.StatusConflict, Code: "SHIFT_ACTIVE"},
		{Target: shift.ErrNoActiveShift, Status: http.StatusConflict, Code: "NO_ACTIVE_SHIFT"},
		{Target: shift.ErrInvalidMovement, Status: http.StatusBadRequest, Code: "BAD_REQUEST"},
	}
)

// Handler wires terminal sessions to HTTP. Every cart, split and shift route
// resolves the session, takes its lock and operates on the engine state.
type Handler struct {
	Registry  *Registry
	Catalog   *catalog.Store
	Customers *customer.Store
	Tx        *transaction.Service
	Events    *events.Bus
	Validate  *validator.Validate

	// Terminal configuration echoed to clients when a session opens.
	Currency   string
	TipPresets []float64
}

// Open creates a session for a terminal.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	if h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session registry not configured", nil)
		return
	}
	var payload struct {
		TerminalID string `json:"terminalId" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "terminalId is required", nil)
		return
	}
	s := h.Registry.Open(payload.TerminalID)
	if obs.ActiveSessions != nil {
		obs.ActiveSessions.Inc()
	}
	common.Data(w, http.StatusCreated, map[string]any{
		"sessionId":  s.ID,
		"terminalId": s.TerminalID,
		"createdAt":  s.CreatedAt,
		"currency":   h.Currency,
		"tipPresets": h.TipPresets,
	})
}

// CloseSession removes a session from the registry.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session registry not configured", nil)
		return
	}
	if err := h.Registry.Close(chi.URLParam(r, "sid")); err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
		return
	}
	if obs.ActiveSessions != nil {
		obs.ActiveSessions.Dec()
	}
	common.Data(w, http.StatusOK, map[string]any{"closed": true})
}

// GetCart returns the cart lines and settlement preview.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()
	common.Data(w, http.StatusOK, cartView(s.Cart, s.Cart.Settlement(), false))
}

// AddItem adds a catalog item (with optional modifiers) to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		ItemID      string   `json:"itemId" validate:"required"`
		Qty         int      `json:"qty"`
		ModifierIDs []string `json:"modifierIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "itemId is required", nil)
		return
	}
	if payload.Qty == 0 {
		payload.Qty = 1
	}
	item, err := h.Catalog.GetItem(r.Context(), payload.ItemID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "catalog item not found", nil)
			return
		}
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "catalog unavailable", nil)
		return
	}
	mods, err := resolveModifiers(payload.ModifierIDs)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	s.Lock()
	defer s.Unlock()
	line, settlement, clamped, err := s.Cart.AddItem(cart.CatalogItem{
		ID:             item.ID,
		Name:           item.Name,
		Price:          item.Price,
		Category:       item.Category,
		AvailableStock: item.AvailableStock,
	}, payload.Qty, mods)
	if err != nil {
		cartErrors.Write(w, err)
		return
	}
	view := cartView(s.Cart, settlement, clamped)
	view["line"] = line.Clone()
	common.Data(w, http.StatusOK, view)
}

// UpdateLine sets the quantity of a cart line.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	s.Lock()
	defer s.Unlock()
	settlement, clamped, err := s.Cart.SetQuantity(chi.URLParam(r, "lineId"), payload.Qty)
	if err != nil {
		cartErrors.Write(w, err)
		return
	}
	common.Data(w, http.StatusOK, cartView(s.Cart, settlement, clamped))
}

// RemoveLine deletes a cart line.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()
	settlement, err := s.Cart.RemoveItem(chi.URLParam(r, "lineId"))
	if err != nil {
		cartErrors.Write(w, err)
		return
	}
	common.Data(w, http.StatusOK, cartView(s.Cart, settlement, false))
}

// ClearCart resets the cart to an empty sale.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()
	s.EndSplit()
	settlement := s.Cart.Clear()
	common.Data(w, http.StatusOK, cartView(s.Cart, settlement, false))
}

// SetDiscount applies an order-level discount percent.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Percent float64 `json:"percent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	s.Lock()
	defer s.Unlock()
	settlement, err := s.Cart.SetDiscountPercent(decimal.NewFromFloat(payload.Percent))
	if err != nil {
		cartErrors.Write(w, err)
		return
	}
	common.Data(w, http.StatusOK, cartView(s.Cart, settlement, false))
}

// SetTax overrides the tax percent for the current sale.
func (h *Handler) SetTax(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Percent float64 `json:"percent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	s.Lock()
	defer s.Unlock()
	settlement, err := s.Cart.SetTaxPercent(decimal.NewFromFloat(payload.Percent))
	if err != nil {
		cartErrors.Write(w, err)
		return
	}
	common.Data(w, http.StatusOK, cartView(s.Cart, settlement, false))
}

// SetTip configures the tip for the current sale.
func (h *Handler) SetTip(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Mode    string      `json:"mode" validate:"omitempty,oneof=percent fixed"`
		Percent float64     `json:"percent"`
		Amount  money.Money `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "mode must be percent or fixed", nil)
		return
	}
	s.Lock()
	defer s.Unlock()
	settlement, err := s.Cart.SetTip(pricing.TipSpec{
		Mode:    pricing.TipMode(payload.Mode),
		Percent: decimal.NewFromFloat(payload.Percent),
		Amount:  payload.Amount,
	})
	if err != nil {
		cartErrors.Write(w, err)
		return
	}
	common.Data(w, http.StatusOK, cartView(s.Cart, settlement, false))
}

// AttachCustomer associates a loyalty account with the sale.
func (h *Handler) AttachCustomer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		CustomerID string `json:"customerId" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "customerId is required", nil)
		return
	}
	if h.Customers != nil {
		if _, err := h.Customers.Get(payload.CustomerID); err != nil {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "customer not found", nil)
			return
		}
	}
	s.Lock()
	defer s.Unlock()
	s.Cart.AttachCustomer(payload.CustomerID)
	common.Data(w, http.StatusOK, cartView(s.Cart, s.Cart.Settlement(), false))
}

// SetNotes stores free-form receipt notes on the sale.
func (h *Handler) SetNotes(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	s.Lock()
	defer s.Unlock()
	s.Cart.SetNotes(payload.Notes)
	common.Data(w, http.StatusOK, cartView(s.Cart, s.Cart.Settlement(), false))
}

// BeginSplit freezes the settlement total and opens a split payment.
func (h *Handler) BeginSplit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()
	if s.Cart.IsEmpty() {
		common.JSONError(w, http.StatusConflict, "EMPTY_CART", "cannot split an empty cart", nil)
		return
	}
	rec, err := s.BeginSplit()
	if err != nil {
		splitErrors.Write(w, err)
		return
	}
	common.Data(w, http.StatusCreated, splitView(rec))
}

// AddSplitPayment records a partial payment towards the frozen target.
func (h *Handler) AddSplitPayment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Method string      `json:"method" validate:"required"`
		Amount money.Money `json:"amount"`
		Payer  string      `json:"payer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "method is required", nil)
		return
	}
	s.Lock()
	defer s.Unlock()
	rec, err := s.Split()
	if err != nil {
		splitErrors.Write(w, err)
		return
	}
	entry, err := rec.AddPayment(split.Method(payload.Method), payload.Amount, payload.Payer)
	if err != nil {
		splitErrors.Write(w, err)
		return
	}
	view := splitView(rec)
	view["entry"] = entry
	common.Data(w, http.StatusOK, view)
}

// RemoveSplitPayment voids a previously recorded partial payment.
func (h *Handler) RemoveSplitPayment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()
	rec, err := s.Split()
	if err != nil {
		splitErrors.Write(w, err)
		return
	}
	if err := rec.RemovePayment(chi.URLParam(r, "paymentId")); err != nil {
		splitErrors.Write(w, err)
		return
	}
	common.Data(w, http.StatusOK, splitView(rec))
}

// EqualSplit previews n equal shares summing exactly to the frozen target.
func (h *Handler) EqualSplit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Payers int `json:"payers" validate:"gte=2"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "payers must be at least 2", nil)
		return
	}
	s.Lock()
	defer s.Unlock()
	rec, err := s.Split()
	if err != nil {
		splitErrors.Write(w, err)
		return
	}
	shares, err := rec.EqualSplit(payload.Payers)
	if err != nil {
		splitErrors.Write(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"target": rec.Target(),
		"shares": shares,
	})
}

// Checkout settles the cart. With an active split the accumulated entries are
// finalized; otherwise the given method is charged for the full total.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Tx == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "transaction service not configured", nil)
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Method string `json:"method"`
		Payer  string `json:"payer"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}

	s.Lock()
	defer s.Unlock()

	in := transaction.SettleInput{
		SessionID: s.ID,
		Ledger:    s.Cart,
		Method:    split.Method(payload.Method),
		Payer:     payload.Payer,
	}
	methodLabel := payload.Method
	if rec, err := s.Split(); err == nil {
		entries, err := rec.Finalize()
		if err != nil {
			splitErrors.Write(w, err)
			return
		}
		in.Payments = entries
		methodLabel = "split"
	}

	tx, err := h.Tx.Settle(r.Context(), in)
	if err != nil {
		if obs.TransactionsTotal != nil {
			obs.TransactionsTotal.WithLabelValues(methodLabel, "error").Inc()
		}
		checkoutErrors.Write(w, err)
		return
	}
	s.EndSplit()
	s.Cart.Clear()
	if obs.TransactionsTotal != nil {
		obs.TransactionsTotal.WithLabelValues(methodLabel, "ok").Inc()
	}
	if obs.SettledAmount != nil {
		obs.SettledAmount.Observe(float64(tx.Settlement.Total))
	}
	common.Data(w, http.StatusCreated, tx)
}

// StartShift opens the cash drawer with the counted starting float.
func (h *Handler) StartShift(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		StartingCash money.Money `json:"startingCash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	s.Lock()
	defer s.Unlock()
	ledger, err := s.Shift.StartShift(payload.StartingCash)
	if err != nil {
		shiftErrors.Write(w, err)
		return
	}
	common.Data(w, http.StatusCreated, ledger)
}

// RecordMovement registers a manual cash in or out against the open shift.
func (h *Handler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Direction string      `json:"direction" validate:"required,oneof=in out"`
		Amount    money.Money `json:"amount"`
		Reason    string      `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "direction must be in or out", nil)
		return
	}
	s.Lock()
	defer s.Unlock()
	ledger, err := s.Shift.RecordCashMovement(shift.Direction(payload.Direction), payload.Amount, payload.Reason)
	if err != nil {
		shiftErrors.Write(w, err)
		return
	}
	common.Data(w, http.StatusOK, ledger)
}

// CloseShift reconciles the counted drawer and closes the shift.
func (h *Handler) CloseShift(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		ActualCash money.Money `json:"actualCash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	s.Lock()
	defer s.Unlock()
	ledger, err := s.Shift.EndShift(payload.ActualCash)
	if err != nil {
		shiftErrors.Write(w, err)
		return
	}
	classification := shift.ClassificationBalanced
	if ledger.Variance != nil {
		classification = shift.Classify(*ledger.Variance)
	}
	if obs.ShiftClosesTotal != nil {
		obs.ShiftClosesTotal.WithLabelValues(string(classification)).Inc()
	}
	if h.Events != nil {
		_, _ = h.Events.Emit(r.Context(), events.TopicShiftClosed, ledger.ID, events.ShiftClosedPayload{
			ShiftID:        ledger.ID,
			SessionID:      s.ID,
			Expected:       *ledger.Expected,
			Actual:         *ledger.ActualCash,
			Variance:       *ledger.Variance,
			Classification: string(classification),
		})
	}
	common.Data(w, http.StatusOK, map[string]any{
		"shift":          ledger,
		"classification": classification,
	})
}

// ShiftStatus returns the open shift, or the drawer-closed marker.
func (h *Handler) ShiftStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Lock()
	defer s.Unlock()
	active := s.Shift.Active()
	if active == nil {
		common.Data(w, http.StatusOK, map[string]any{"open": false})
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"open":         true,
		"shift":        active,
		"expectedCash": active.ExpectedCash(),
	})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	if h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session registry not configured", nil)
		return nil, false
	}
	s, err := h.Registry.Get(chi.URLParam(r, "sid"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
		return nil, false
	}
	return s, true
}

func (h *Handler) validate(v any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(v)
}

// cartView renders the cart plus its settlement. The caller must hold the
// session lock.
func cartView(g *cart.Ledger, settlement pricing.Settlement, clamped bool) map[string]any {
	view := map[string]any{
		"items":           g.Items(),
		"settlement":      settlement,
		"discountPercent": g.DiscountPercent(),
		"taxPercent":      g.TaxPercent(),
		"customerId":      g.CustomerID(),
		"notes":           g.Notes(),
	}
	if clamped {
		view["clamped"] = true
	}
	return view
}

func splitView(rec *split.Reconciler) map[string]any {
	return map[string]any{
		"target":    rec.Target(),
		"paid":      rec.Paid(),
		"remaining": rec.Remaining(),
		"complete":  rec.IsComplete(),
		"entries":   rec.Entries(),
	}
}

func resolveModifiers(ids []string) ([]cart.Modifier, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	mods := make([]cart.Modifier, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		spec, ok := catalog.SeedModifiers[id]
		if !ok {
			return nil, errors.New("unknown modifier " + id)
		}
		mods = append(mods, cart.Modifier{ID: id, Name: spec.Name, Price: spec.Price, GroupID: spec.Group})
	}
	return mods, nil
}
