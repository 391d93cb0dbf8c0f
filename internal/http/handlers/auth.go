package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hrstack/authhub/internal/auth"
	"github.com/hrstack/authhub/internal/config"
	"github.com/hrstack/authhub/internal/domain/account"
	"github.com/hrstack/authhub/internal/domain/job"
	"github.com/hrstack/authhub/internal/jobs"
	"github.com/hrstack/authhub/internal/observability"
	"github.com/hrstack/authhub/internal/otp"
	"github.com/hrstack/authhub/internal/security"
)

type AccountReader interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
}

type AccountWriter interface {
	UpdateOTP(ctx context.Context, id int64, code string, issuedAt time.Time) error
	MarkVerified(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

// RegistrationStore commits the account insert and the verification-mail
// enqueue atomically.
type RegistrationStore interface {
	CreateWithJob(ctx context.Context, a account.Account, req job.CreateRequest) (account.Account, error)
}

type JobsEnqueuer interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

// WakeSignal pokes the worker after an enqueue so mail goes out without
// waiting for the next poll tick. Best effort; the durable row is already
// committed when it fires.
type WakeSignal interface {
	Nudge(ctx context.Context) error
}

type AuthHandler struct {
	accounts AccountReader
	writer   AccountWriter
	reg      RegistrationStore
	enqueue  JobsEnqueuer
	wake     WakeSignal
	jwt      *auth.Manager
	otp      *otp.Engine
	prom     *observability.Prom
}

func NewAuthHandler(accounts AccountReader, writer AccountWriter, reg RegistrationStore, enqueue JobsEnqueuer, jwtManager *auth.Manager, otpEngine *otp.Engine, prom *observability.Prom) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		writer:   writer,
		reg:      reg,
		enqueue:  enqueue,
		jwt:      jwtManager,
		otp:      otpEngine,
		prom:     prom,
	}
}

// WithWakeSignal wires the worker doorbell. Optional; polling covers its
// absence.
func (h *AuthHandler) WithWakeSignal(w WakeSignal) *AuthHandler {
	h.wake = w
	return h
}

func (h *AuthHandler) wakeWorker(ctx context.Context) {
	if h.wake != nil {
		_ = h.wake.Nudge(ctx)
	}
}

type RegisterRequest struct {
	FullName string `json:"fullName" binding:"required,min=2,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Role     string `json:"role" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	OTP         string `json:"otp" binding:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=72"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type ValidateRequest struct {
	Token string `json:"token" binding:"required"`
}

// Register creates an unverified account and queues the OTP mail in the same
// transaction. The insert itself arbitrates duplicate emails; two concurrent
// registrations for one address race at the unique index, not up here.
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	role, err := account.RegisterableRole(req.Role)

	if err != nil {
		RespondError(ctx, http.StatusBadRequest, "invalid_role", "Role must be EMPLOYEE or MANAGER.", nil)
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create account")
		return
	}

	now := time.Now().UTC()

	a := account.New(req.FullName, req.Email, hash, role, now)

	a, code, err := h.otp.Issue(a, now)

	if err != nil {
		RespondInternal(ctx, "Could not create account")
		return
	}

	jobReq, err := h.otpJobRequest(ctx, jobs.JobSendVerificationEmail, a, code, now)

	if err != nil {
		RespondInternal(ctx, "Could not create account")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	created, err := h.reg.CreateWithJob(cctx, a, jobReq)

	if err != nil {
		if errors.Is(err, account.ErrDuplicateEmail) {
			RespondConflict(ctx, "email_taken", "Email is already in use.")
			return
		}

		RespondInternal(ctx, "Could not create account")
		return
	}

	h.wakeWorker(cctx)

	ctx.JSON(http.StatusCreated, gin.H{
		"message":  "Registration successful. Verify your account with the code sent to your email.",
		"email":    created.Email,
		"role":     created.Role,
		"userId":   created.ID,
		"verified": created.Verified,
	})
}

// Login checks credentials first, then account state. The state errors come
// back in a fixed order (unverified, disabled, locked) so the same account
// always yields the same answer.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	found, err := h.accounts.GetByEmail(cctx, req.Email)

	// A missing account and a wrong password answer identically, but an
	// unreachable store is not a credential failure.
	if errors.Is(err, account.ErrNotFound) {
		h.countLogin("invalid_credentials")
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	if err != nil {
		RespondInternal(ctx, "Could not log in")
		return
	}

	err = security.CheckPassword(found.PasswordHash, req.Password)

	if err != nil {
		h.countLogin("invalid_credentials")
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	err = found.CanLogin()

	switch {
	case errors.Is(err, account.ErrUnverified):
		h.countLogin("unverified")
		RespondForbidden(ctx, "account_unverified", "Account is not verified. Complete OTP verification first.")
		return
	case errors.Is(err, account.ErrDisabled):
		h.countLogin("disabled")
		RespondForbidden(ctx, "account_disabled", "Account is disabled.")
		return
	case errors.Is(err, account.ErrLocked):
		h.countLogin("locked")
		RespondForbidden(ctx, "account_locked", "Account is locked.")
		return
	case err != nil:
		RespondInternal(ctx, "Could not log in")
		return
	}

	pair, err := h.jwt.IssuePair(found.Email, found.Role, found.ID)

	if err != nil {
		RespondInternal(ctx, "Could not generate tokens")
		return
	}

	h.countLogin("ok")

	ctx.JSON(http.StatusOK, tokenResponse(pair, found, "Login successful."))
}

// VerifyOTP flips the account to verified and signs the caller in. A wrong
// code answers before an expired one so probing cannot distinguish the two
// by trying garbage.
func (h *AuthHandler) VerifyOTP(ctx *gin.Context) {
	var req VerifyOTPRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	found, ok := h.lookupAccount(ctx, cctx, req.Email)

	if !ok {
		return
	}

	if found.Verified {
		h.countOTP("already_verified")
		RespondConflict(ctx, "already_verified", "Account is already verified.")
		return
	}

	err := h.otp.Check(found, req.OTP, time.Now().UTC())

	switch {
	case errors.Is(err, otp.ErrNotRequested):
		h.countOTP("not_requested")
		RespondBadRequest(ctx, "No verification code is outstanding. Request a new one.", nil)
		return
	case errors.Is(err, otp.ErrMismatch):
		h.countOTP("mismatch")
		RespondUnAuthorized(ctx, "invalid_otp", "The code is incorrect.")
		return
	case errors.Is(err, otp.ErrExpired):
		h.countOTP("expired")
		RespondUnAuthorized(ctx, "otp_expired", "The code has expired. Request a new one.")
		return
	case err != nil:
		RespondInternal(ctx, "Could not verify account")
		return
	}

	err = h.writer.MarkVerified(cctx, found.ID)

	if err != nil {
		if errors.Is(err, account.ErrAlreadyVerified) {
			h.countOTP("already_verified")
			RespondConflict(ctx, "already_verified", "Account is already verified.")
			return
		}

		RespondInternal(ctx, "Could not verify account")
		return
	}

	pair, err := h.jwt.IssuePair(found.Email, found.Role, found.ID)

	if err != nil {
		RespondInternal(ctx, "Could not generate tokens")
		return
	}

	h.countOTP("ok")

	ctx.JSON(http.StatusOK, tokenResponse(pair, found, "Account verified successfully."))
}

// ResendOTP replaces any outstanding code. The old code stops working the
// moment the new one is stored, and the dedupe key makes a still-pending
// older mail job carry the new payload instead of dispatching twice.
func (h *AuthHandler) ResendOTP(ctx *gin.Context) {
	var req EmailRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	found, ok := h.lookupAccount(ctx, cctx, req.Email)

	if !ok {
		return
	}

	if found.Verified {
		RespondConflict(ctx, "already_verified", "Account is already verified.")
		return
	}

	if !h.issueAndQueue(ctx, cctx, jobs.JobSendVerificationEmail, found) {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "A new verification code has been sent to your email.",
	})
}

// ForgotPassword issues a reset code over the same OTP machinery used for
// account verification.
func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req EmailRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	found, ok := h.lookupAccount(ctx, cctx, req.Email)

	if !ok {
		return
	}

	if !h.issueAndQueue(ctx, cctx, jobs.JobSendPasswordResetEmail, found) {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "A password reset code has been sent to your email.",
	})
}

// ResetPassword consumes the reset code and installs the new hash. The
// password update clears the code, so a reset code is single-use.
func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	found, ok := h.lookupAccount(ctx, cctx, req.Email)

	if !ok {
		return
	}

	err := h.otp.Check(found, req.OTP, time.Now().UTC())

	switch {
	case errors.Is(err, otp.ErrNotRequested):
		RespondBadRequest(ctx, "No reset code is outstanding. Request one first.", nil)
		return
	case errors.Is(err, otp.ErrMismatch):
		RespondUnAuthorized(ctx, "invalid_otp", "The code is incorrect.")
		return
	case errors.Is(err, otp.ErrExpired):
		RespondUnAuthorized(ctx, "otp_expired", "The code has expired. Request a new one.")
		return
	case err != nil:
		RespondInternal(ctx, "Could not reset password")
		return
	}

	hash, err := security.HashPassword(req.NewPassword)

	if err != nil {
		RespondInternal(ctx, "Could not reset password")
		return
	}

	err = h.writer.UpdatePassword(cctx, found.ID, hash)

	if err != nil {
		RespondInternal(ctx, "Could not reset password")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Password has been reset. You can now log in.",
	})
}

// Refresh re-issues a token pair from the refresh token's own claims. There
// is no server-side token state to consult; possession of an unexpired
// refresh token is the whole credential.
func (h *AuthHandler) Refresh(ctx *gin.Context) {
	var req RefreshRequest

	if !BindJSON(ctx, &req) {
		return
	}

	claims, err := h.jwt.ValidateRefreshToken(req.RefreshToken)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token.")
		return
	}

	pair, err := h.jwt.IssuePair(claims.Email, claims.Role, claims.UserID)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// Validate reports whether a presented access token verifies. It always
// answers 200; invalidity is data, not an error.
func (h *AuthHandler) Validate(ctx *gin.Context) {
	var req ValidateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	claims, err := h.jwt.ValidateAccessToken(req.Token)

	if err != nil {
		h.countValidation(false)
		ctx.JSON(http.StatusOK, gin.H{"valid": false})
		return
	}

	h.countValidation(true)

	ctx.JSON(http.StatusOK, gin.H{
		"valid":  true,
		"email":  claims.Email,
		"role":   claims.Role,
		"userId": claims.UserID,
	})
}

// helpers

// lookupAccount fetches by email and writes the response on failure. Only a
// confirmed missing row maps to 404; a store error is reported as such.
func (h *AuthHandler) lookupAccount(ctx *gin.Context, cctx context.Context, email string) (account.Account, bool) {
	found, err := h.accounts.GetByEmail(cctx, email)

	if errors.Is(err, account.ErrNotFound) {
		RespondNotFound(ctx, "No account for that email.")
		return account.Account{}, false
	}

	if err != nil {
		RespondInternal(ctx, "Account lookup failed")
		return account.Account{}, false
	}

	return found, true
}

func (h *AuthHandler) issueAndQueue(ctx *gin.Context, cctx context.Context, kind jobs.JobType, found account.Account) bool {
	now := time.Now().UTC()

	updated, code, err := h.otp.Issue(found, now)

	if err != nil {
		RespondInternal(ctx, "Could not issue code")
		return false
	}

	err = h.writer.UpdateOTP(cctx, updated.ID, code, now)

	if err != nil {
		RespondInternal(ctx, "Could not issue code")
		return false
	}

	jobReq, err := h.otpJobRequest(ctx, kind, updated, code, now)

	if err != nil {
		RespondInternal(ctx, "Could not issue code")
		return false
	}

	_, err = h.enqueue.Create(cctx, jobReq)

	if err != nil {
		RespondInternal(ctx, "Could not issue code")
		return false
	}

	h.wakeWorker(cctx)

	return true
}

func (h *AuthHandler) otpJobRequest(ctx *gin.Context, kind jobs.JobType, a account.Account, code string, now time.Time) (job.CreateRequest, error) {
	payload, err := jobs.EncodePayload(kind, jobs.OTPEmailPayload{
		AccountID:   a.ID,
		Email:       a.Email,
		FullName:    a.FullName,
		Code:        code,
		RequestedAt: now,
		RequestID:   requestIDFrom(ctx),
	})

	if err != nil {
		return job.CreateRequest{}, err
	}

	req := job.CreateRequest{
		Type:    string(kind),
		Payload: payload,
	}

	// Registration does not know the account id yet; the store binds the key
	// after the insert. Every other flow can bind it right away.
	if a.ID > 0 {
		return jobs.BindAccountID(req, a.ID)
	}

	return req, nil
}

// tokenResponse is the signed-in body shared by login and OTP verification.
// Both only fire for verified accounts, so verified is always true here.
func tokenResponse(pair auth.TokenPair, a account.Account, message string) gin.H {
	return gin.H{
		"message":      message,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"email":        a.Email,
		"role":         a.Role,
		"userId":       a.ID,
		"verified":     true,
	}
}

func (h *AuthHandler) countLogin(result string) {
	if h.prom != nil {
		h.prom.LoginsTotal.WithLabelValues(result).Inc()
	}
}

func (h *AuthHandler) countOTP(result string) {
	if h.prom != nil {
		h.prom.OTPVerificationsTotal.WithLabelValues(result).Inc()
	}
}

func (h *AuthHandler) countValidation(valid bool) {
	if h.prom != nil {
		label := "false"
		if valid {
			label = "true"
		}
		h.prom.TokenValidationsTotal.WithLabelValues(label).Inc()
	}
}
