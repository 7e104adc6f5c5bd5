package server

import (
	"net/http"

	"authsvc/internal/auth"
)

type registerRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !validateEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "Invalid email format")
		return
	}
	if err := validatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	if locked, ttl, err := s.RateLimiter.RegisterRegisterAttempt(ctx, ip); err != nil {
		writeError(w, http.StatusInternalServerError, "Registration throttled")
		return
	} else if locked {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"message":  "Too many signup attempts. Try again later.",
			"cooldown": int64(ttl.Seconds()),
		})
		return
	}

	result, err := s.Auth.SignUp(ctx, auth.SignUpInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

type verifyEmailRequest struct {
	OTP string `json:"otp"`
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OTP == "" {
		writeError(w, http.StatusBadRequest, "OTP is required")
		return
	}

	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	locked, ttl, err := s.RateLimiter.RegisterVerifyAttempt(ctx, ip)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to verify email")
		return
	}
	if locked {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"message":  "Too many verification attempts. Try again later.",
			"cooldown": int64(ttl.Seconds()),
		})
		return
	}

	result, err := s.Auth.VerifyEmail(ctx, token, req.OTP)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.RateLimiter.ResetVerify(ctx, ip)

	writeJSON(w, http.StatusOK, result)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !validateEmail(req.Email) || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	if s.RateLimiter.IsIPBanned(ctx, ip) {
		writeError(w, http.StatusForbidden, "Too many failed attempts. Try again later.")
		return
	}

	result, err := s.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		if auth.KindOf(err) == auth.KindClient {
			_ = s.RateLimiter.RegisterLoginFailure(ctx, ip)
		}
		writeServiceError(w, err)
		return
	}
	s.RateLimiter.ResetLogin(ctx, ip)

	writeJSON(w, http.StatusOK, result)
}

type changePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validatePassword(req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := userIDFromContext(r.Context())
	result, err := s.Auth.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type magicLinkRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleMagicLink(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !validateEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "Invalid email format")
		return
	}

	ctx := r.Context()
	if ttl := s.RateLimiter.MagicLinkCooldownTTL(ctx, req.Email); ttl > 0 {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"message":  "Please wait before requesting another link.",
			"cooldown": int64(ttl.Seconds()),
		})
		return
	}

	result, err := s.Auth.GenerateMagicLink(ctx, req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.RateLimiter.SetMagicLinkCooldown(ctx, req.Email)

	writeJSON(w, http.StatusOK, result)
}

type magicLinkVerifyRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleMagicLinkVerify(w http.ResponseWriter, r *http.Request) {
	var req magicLinkVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "Token is required")
		return
	}

	ctx := r.Context()
	validation, err := s.Auth.ValidateMagicLinkToken(ctx, req.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	login, err := s.Auth.PasswordlessLogin(ctx, validation.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       validation.Status,
		"email":        validation.Email,
		"userId":       validation.UserID,
		"access_token": login.AccessToken,
	})
}

type enableTwoFactorRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleEnable2FA(w http.ResponseWriter, r *http.Request) {
	var req enableTwoFactorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID := userIDFromContext(r.Context())
	result, err := s.Auth.Enable2FA(r.Context(), userID, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type verifyTwoFactorRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleVerify2FA(w http.ResponseWriter, r *http.Request) {
	var req verifyTwoFactorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "Code is required")
		return
	}

	ctx := r.Context()
	userID := userIDFromContext(ctx)

	if err := s.Auth.VerifyTwoFactorCode(ctx, userID, req.Code); err != nil {
		if auth.KindOf(err) == auth.KindClient {
			locked, _ := s.RateLimiter.RegisterTwoFactorFailure(ctx, userID)
			if locked {
				writeError(w, http.StatusForbidden, "Too many failed attempts. Try again later.")
				return
			}
		}
		writeServiceError(w, err)
		return
	}
	s.RateLimiter.ResetTwoFactor(ctx, userID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Code accepted"})
}
