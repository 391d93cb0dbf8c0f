package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hrstack/authhub/internal/config"
	"github.com/hrstack/authhub/internal/domain/account"
)

type AccountsHandler struct {
	accounts AccountReader
}

func NewAccountsHandler(accounts AccountReader) *AccountsHandler {
	return &AccountsHandler{accounts: accounts}
}

// AccountView is the outward shape of an account. No hash, no OTP material.
type AccountView struct {
	ID        int64        `json:"id"`
	FullName  string       `json:"fullName"`
	Email     string       `json:"email"`
	Role      account.Role `json:"role"`
	Verified  bool         `json:"verified"`
	Enabled   bool         `json:"enabled"`
	Locked    bool         `json:"locked"`
	CreatedAt time.Time    `json:"createdAt"`
}

// GetByEmail serves the admin lookup. Route-level authorization has already
// run; this only fetches and shapes.
func (h *AccountsHandler) GetByEmail(ctx *gin.Context) {
	email := ctx.Param("email")

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	found, err := h.accounts.GetByEmail(cctx, email)

	if errors.Is(err, account.ErrNotFound) {
		RespondNotFound(ctx, "No account for that email.")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Account lookup failed")
		return
	}

	ctx.JSON(http.StatusOK, AccountView{
		ID:        found.ID,
		FullName:  found.FullName,
		Email:     found.Email,
		Role:      found.Role,
		Verified:  found.Verified,
		Enabled:   found.Enabled,
		Locked:    found.Locked,
		CreatedAt: found.CreatedAt,
	})
}
