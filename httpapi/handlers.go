package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	skyAuth "github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/csrf"
	"github.com/MrEthical07/skyAuth/middleware"
)

type handlers struct {
	engine *skyAuth.Engine
	csrf   *csrf.Guard
}

func (h *handlers) csrfToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrf.Issue(w)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, csrfResponse{CSRFToken: token})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	h.doLogin(w, r, h.engine.Login)
}

func (h *handlers) loginAdmin(w http.ResponseWriter, r *http.Request) {
	h.doLogin(w, r, h.engine.LoginAdmin)
}

func (h *handlers) doLogin(w http.ResponseWriter, r *http.Request, run func(context.Context, skyAuth.LoginRequest) (*skyAuth.LoginResult, error)) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
		WriteError(w, r, ErrMissing)
		return
	}

	res, err := run(r.Context(), skyAuth.LoginRequest{
		Identifier: req.Identifier,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if res.RequiresTwoFactor {
		writeJSON(w, http.StatusOK, loginResponse{
			RequiresTwoFactor: true,
			UserID:            res.UserID,
			TempToken:         res.TempToken,
			ExpiresIn:         int64(res.ExpiresIn / time.Second),
		})
		return
	}
	t := toTokens(*res.Tokens)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
		User:         res.User,
	})
}

func (h *handlers) verifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.UserID == "" || req.TempToken == "" || strings.TrimSpace(req.Token) == "" {
		WriteError(w, r, ErrMissing)
		return
	}

	res, err := h.engine.VerifyTwoFactorLogin(r.Context(), skyAuth.TwoFactorLoginRequest{
		UserID:       req.UserID,
		TempToken:    req.TempToken,
		Code:         req.Token,
		IsBackupCode: req.IsBackupCode,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{
		tokensResponse:       toTokens(res.Tokens),
		User:                 res.User,
		BackupCodesRemaining: res.BackupCodesRemaining,
	})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		WriteError(w, r, ErrMissing)
		return
	}

	pair, err := h.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokens(*pair))
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.AuthResultFromContext(r.Context())
	writeJSON(w, http.StatusOK, meResponse{
		UserID:           res.UserID,
		Identifier:       res.Identifier,
		Roles:            res.Roles,
		TwoFactorEnabled: res.TwoFactorEnabled,
		ExpiresAt:        res.ExpiresAt,
	})
}

func (h *handlers) twoFactorStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.engine.TwoFactorStatus(r.Context(), userID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	out := statusResponse{
		State:                st.State.String(),
		Enabled:              st.Enabled,
		BackupCodesRemaining: st.BackupCodesRemaining,
	}
	if !st.EnabledAt.IsZero() {
		at := st.EnabledAt
		out.EnabledAt = &at
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) beginSetup(w http.ResponseWriter, r *http.Request) {
	setup, err := h.engine.BeginTwoFactorSetup(r.Context(), userID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, setupResponse{
		QRCodeURI:   setup.ProvisioningURI,
		Secret:      setup.Secret,
		BackupCodes: setup.BackupCodes,
	})
}

func (h *handlers) confirmSetup(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		WriteError(w, r, ErrMissing)
		return
	}
	if err := h.engine.ConfirmTwoFactorSetup(r.Context(), userID(r), req.Token); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) disable(w http.ResponseWriter, r *http.Request) {
	var req disableRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.engine.DisableTwoFactor(r.Context(), userID(r), req.Password, req.Token); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) regenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	codes, err := h.engine.RegenerateBackupCodes(r.Context(), userID(r), req.Password)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, backupCodesResponse{BackupCodes: codes})
}

func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.NewPassword == "" {
		WriteError(w, r, ErrMissing)
		return
	}
	if err := h.engine.ChangePassword(r.Context(), userID(r), req.CurrentPassword, req.NewPassword, req.Token); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) logoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.RevokeTokens(r.Context(), userID(r)); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) setAccountStatus(w http.ResponseWriter, r *http.Request) {
	var req accountStatusRequest
	if err := readJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	status, ok := skyAuth.ParseAccountStatus(req.Status)
	if !ok {
		WriteError(w, r, ErrBadRequest)
		return
	}
	if err := h.engine.SetAccountStatus(r.Context(), chi.URLParam(r, "id"), status, req.Locked); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userID(r *http.Request) string {
	res, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		return ""
	}
	return res.UserID
}
