package models

import "time"

type OTPPurpose string

const (
	OTPPurposeVerify OTPPurpose = "verify"
	OTPPurposeReset  OTPPurpose = "reset"
)

// EmailOTP is one issued code; every send is a new row.
type EmailOTP struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Email     string     `json:"email"`
	Code      string     `json:"-"`
	Purpose   OTPPurpose `json:"purpose"`
	CreatedAt time.Time  `json:"created_at"`
	IsUsed    bool       `json:"is_used"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}
