package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cmsapi/internal/models"
	"cmsapi/internal/services"
)

type AuthHandler struct {
	accounts services.AccountService
}

func NewAuthHandler(accounts services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type RegisterResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

type LoginResponse struct {
	Message string       `json:"message"`
	Refresh string       `json:"refresh"`
	Access  string       `json:"access"`
	User    *models.User `json:"user"`
}

// @Summary      Register
// @Description  Creates an unverified account and e-mails a verification code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.RegisterRequest  true  "Registration data"
// @Success      201   {object}  RegisterResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  map[string]string
// @Router       /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.accounts.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, RegisterResponse{
		Message: "User registered successfully. Please verify your email using the OTP sent.",
		User:    user,
	})
}

// @Summary      Verify e-mail
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.VerifyOTPRequest  true  "E-mail and code"
// @Success      200   {object}  MessageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      410   {object}  ErrorResponse
// @Router       /verify-otp [post]
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := h.accounts.VerifyEmail(c.Request.Context(), req.Email, req.OTP); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Email verified successfully!"})
}

// @Summary      Resend verification code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.EmailRequest  true  "E-mail"
// @Success      200   {object}  MessageResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Router       /resend-otp [post]
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req models.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.accounts.ResendVerification(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "check your email for the otp"})
}

// @Summary      Log in
// @Description  Authenticates the user and returns access and refresh tokens
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Credentials"
// @Success      200    {object}  LoginResponse
// @Failure      400    {object}  ErrorResponse
// @Failure      401    {object}  ErrorResponse
// @Failure      403    {object}  ErrorResponse
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, tokens, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{
		Message: "Login successful",
		Refresh: tokens.Refresh,
		Access:  tokens.Access,
		User:    user,
	})
}

// @Summary      Request password reset
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.EmailRequest  true  "E-mail"
// @Success      200   {object}  MessageResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /forget-password [post]
func (h *AuthHandler) ForgetPassword(c *gin.Context) {
	var req models.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.accounts.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "check your email for the otp"})
}

// @Summary      Reset password with a code
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.ResetPasswordRequest  true  "E-mail, code and new password"
// @Success      200   {object}  MessageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      410   {object}  ErrorResponse
// @Router       /reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.accounts.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "your password is reset successfully"})
}

// @Summary      Refresh access token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.RefreshRequest  true  "Refresh token"
// @Success      200   {object}  services.TokenPair
// @Failure      401   {object}  ErrorResponse
// @Failure      410   {object}  ErrorResponse
// @Router       /token/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tokens, err := h.accounts.RefreshTokens(c.Request.Context(), req.Refresh)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// @Summary      Current user
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      401  {object}  ErrorResponse
// @Router       /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}
