package httpapi

import (
	"time"

	skyAuth "github.com/MrEthical07/skyAuth"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

type tokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// loginResponse carries either the challenge fields or the session pair.
// ExpiresIn is the challenge lifetime or the access token lifetime.
type loginResponse struct {
	RequiresTwoFactor bool                `json:"requiresTwoFactor"`
	UserID            string              `json:"userId,omitempty"`
	TempToken         string              `json:"tempToken,omitempty"`
	AccessToken       string              `json:"accessToken,omitempty"`
	RefreshToken      string              `json:"refreshToken,omitempty"`
	ExpiresIn         int64               `json:"expiresIn"`
	User              *skyAuth.PublicUser `json:"user,omitempty"`
}

type verifyRequest struct {
	UserID       string `json:"userId"`
	Token        string `json:"token"`
	IsBackupCode bool   `json:"isBackupCode"`
	TempToken    string `json:"tempToken"`
}

type verifyResponse struct {
	tokensResponse
	User                 skyAuth.PublicUser `json:"user"`
	BackupCodesRemaining *int               `json:"backupCodesRemaining,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type meResponse struct {
	UserID           string    `json:"userId"`
	Identifier       string    `json:"identifier"`
	Roles            []string  `json:"roles"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

type setupResponse struct {
	QRCodeURI   string   `json:"qrCodeUri"`
	Secret      string   `json:"secret"`
	BackupCodes []string `json:"backupCodes"`
}

type codeRequest struct {
	Token string `json:"token"`
}

type disableRequest struct {
	Password string `json:"password"`
	Token    string `json:"token"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type backupCodesResponse struct {
	BackupCodes []string `json:"backupCodes"`
}

type statusResponse struct {
	State                string     `json:"state"`
	Enabled              bool       `json:"enabled"`
	BackupCodesRemaining int        `json:"backupCodesRemaining"`
	EnabledAt            *time.Time `json:"enabledAt,omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	Token           string `json:"token"`
}

type accountStatusRequest struct {
	Status string `json:"status"`
	Locked bool   `json:"locked"`
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

func toTokens(p skyAuth.TokenPair) tokensResponse {
	return tokensResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresIn:    int64(p.ExpiresIn / time.Second),
	}
}
