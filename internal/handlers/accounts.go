package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/auth"
	"github.com/courtsideapp/courtside/internal/model"
	"github.com/courtsideapp/courtside/internal/storage"
)

type AccountsHandler struct {
	accounts   *storage.AccountRepository
	refresh    *storage.RefreshRepository
	bookings   *storage.BookingRepository
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAccountsHandler(accounts *storage.AccountRepository, refresh *storage.RefreshRepository, bookings *storage.BookingRepository, secret string, accessTTL, refreshTTL time.Duration) *AccountsHandler {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &AccountsHandler{
		accounts:   accounts,
		refresh:    refresh,
		bookings:   bookings,
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

type registerRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (h *AccountsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalid(w, "invalid json body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		invalid(w, "valid email required")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		invalid(w, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		internal(w)
		return
	}
	account := model.Account{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	}
	if err := h.accounts.Create(r.Context(), &account); err != nil {
		if storage.IsConflict(err) {
			writeError(w, http.StatusConflict, kindConflict, "email already registered")
			return
		}
		internal(w)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"account_id": account.ID,
		"email":      account.Email,
		"first_name": account.FirstName,
		"last_name":  account.LastName,
	})
}

func (h *AccountsHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalid(w, "invalid json body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		invalid(w, "email and password required")
		return
	}

	account, err := h.accounts.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, kindInvalid, "invalid credentials")
			return
		}
		internal(w)
		return
	}
	if err := auth.CheckPassword(account.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, kindInvalid, "invalid credentials")
		return
	}

	h.issuePair(w, r, account, http.StatusOK)
}

func (h *AccountsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalid(w, "invalid json body")
		return
	}
	req.Refresh = strings.TrimSpace(req.Refresh)
	if req.Refresh == "" {
		invalid(w, "refresh required")
		return
	}

	record, err := h.refresh.GetByHash(r.Context(), storage.HashToken(req.Refresh))
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, kindInvalid, "invalid refresh token")
			return
		}
		internal(w)
		return
	}
	if record.RevokedAt != nil || record.ExpiresAt.Before(time.Now()) {
		writeError(w, http.StatusUnauthorized, kindInvalid, "refresh token expired")
		return
	}

	account, err := h.accounts.GetByID(r.Context(), record.AccountID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, kindInvalid, "invalid refresh token")
			return
		}
		internal(w)
		return
	}

	// Rotation: the presented token is revoked before a new pair goes out.
	if err := h.refresh.Revoke(r.Context(), record.ID); err != nil {
		internal(w)
		return
	}
	h.issuePair(w, r, account, http.StatusOK)
}

func (h *AccountsHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": account.ID,
		"email":      account.Email,
		"first_name": account.FirstName,
		"last_name":  account.LastName,
		"admin":      account.Admin,
	})
}

func (h *AccountsHandler) MyBookings(w http.ResponseWriter, r *http.Request) {
	account, ok := h.currentAccount(w, r)
	if !ok {
		return
	}
	list, err := h.bookings.ListByAccount(r.Context(), account.ID)
	if err != nil {
		internal(w)
		return
	}

	out := make([]map[string]any, 0, len(list))
	for _, b := range list {
		out = append(out, map[string]any{
			"booking_id": b.ID,
			"court_name": b.CourtName,
			"start_time": b.StartTime.UTC().Format(time.RFC3339),
			"duration":   b.Duration,
			"created_at": b.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AccountsHandler) currentAccount(w http.ResponseWriter, r *http.Request) (model.Account, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, kindInvalid, "unauthorized")
		return model.Account{}, false
	}
	id, err := uuid.Parse(claims.Sub)
	if err != nil {
		writeError(w, http.StatusUnauthorized, kindInvalid, "unauthorized")
		return model.Account{}, false
	}
	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			notFound(w, "account not found")
			return model.Account{}, false
		}
		internal(w)
		return model.Account{}, false
	}
	return account, true
}

func (h *AccountsHandler) issuePair(w http.ResponseWriter, r *http.Request, account model.Account, status int) {
	now := time.Now()
	access, err := auth.SignHS256(auth.Claims{
		Sub:   account.ID.String(),
		Email: account.Email,
		Admin: account.Admin,
		Kind:  auth.KindAccess,
		Exp:   now.Add(h.accessTTL).Unix(),
		Iat:   now.Unix(),
	}, h.secret)
	if err != nil {
		internal(w)
		return
	}

	refresh, err := randomToken()
	if err != nil {
		internal(w)
		return
	}
	if _, err := h.refresh.Create(r.Context(), account.ID, refresh, now.Add(h.refreshTTL)); err != nil {
		internal(w)
		return
	}

	writeJSON(w, status, tokenResponse{Access: access, Refresh: refresh})
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
