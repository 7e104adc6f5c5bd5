package auth

import (
	"context"
	"log"
	"strings"
	"time"
)

// EmailDispatcher delivers mail produced by the flows. Dispatch is
// fire-and-forget: the service logs failures and never rolls back state
// that was already committed.
type EmailDispatcher interface {
	SendVerificationCode(ctx context.Context, to, code string, validFor time.Duration) error
	SendMagicLink(ctx context.Context, to, link string, validFor time.Duration) error
}

// Service implements the identity and credential lifecycle flows. All
// dependencies are injected at construction; nothing is reached through
// globals, and no collaborator calls back into the service.
type Service struct {
	store   CredentialStore
	hasher  PasswordHasher
	tokens  *TokenIssuer
	otps    *OTPGenerator
	totp    *TOTPCodec
	backup  *BackupCodeManager
	mailer  EmailDispatcher
	baseURL string
	now     func() time.Time
}

func NewService(
	store CredentialStore,
	hasher PasswordHasher,
	tokens *TokenIssuer,
	otps *OTPGenerator,
	totp *TOTPCodec,
	backup *BackupCodeManager,
	mailer EmailDispatcher,
	baseURL string,
) *Service {
	return &Service{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		otps:    otps,
		totp:    totp,
		backup:  backup,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

const invalidCredentialsMessage = "Invalid email or password"

// dummyPasswordHash keeps the missing-user login path as expensive as the
// wrong-password path, so the two failures are indistinguishable by timing.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type SignUpInput struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	PhoneNumber string
}

type SignUpResult struct {
	Message     string     `json:"message"`
	User        PublicUser `json:"user"`
	AccessToken string     `json:"access_token"`
}

// SignUp registers a new user in the unverified state, attaches a pending
// OTP, issues an access token, and dispatches the OTP by email. Delivery
// failure does not abort registration.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	if in.Email == "" || in.Password == "" || in.FirstName == "" || in.LastName == "" || in.PhoneNumber == "" {
		return nil, BadRequest("All fields are required")
	}

	existing, err := s.store.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, ServerError("Failed to check existing user", err)
	}
	if existing != nil {
		return nil, Conflict("User with this email already exists")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, ServerError("Failed to hash password", err)
	}

	code, expiresAt, err := s.otps.NewCode(s.now())
	if err != nil {
		return nil, ServerError("Failed to generate OTP", err)
	}
	otpHash := HashString(code)

	user := &User{
		Email:        in.Email,
		PasswordHash: hash,
		Profile: Profile{
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			PhoneNumber: in.PhoneNumber,
		},
		IsVerified:   false,
		OTP:          &otpHash,
		OTPExpiresAt: &expiresAt,
	}

	created, err := s.store.Create(ctx, user)
	if err != nil {
		return nil, ServerError("Failed to create user", err)
	}

	token, err := s.tokens.IssueAccess(created.ID)
	if err != nil {
		return nil, ServerError("Failed to issue access token", err)
	}

	s.dispatch(func(ctx context.Context) error {
		return s.mailer.SendVerificationCode(ctx, created.Email, code, s.otps.TTL)
	})

	return &SignUpResult{
		Message:     "User created successfully",
		User:        created.Public(),
		AccessToken: token,
	}, nil
}

type VerifyEmailResult struct {
	Message string `json:"message"`
}

// VerifyEmail consumes the pending OTP for the user identified by the
// access token. Consumption is conditional on the stored value, so the OTP
// is usable at most once even under concurrent attempts.
func (s *Service) VerifyEmail(ctx context.Context, token, otp string) (*VerifyEmailResult, error) {
	claims, err := s.tokens.Verify(token, PurposeAccess)
	if err != nil || claims.UserID == "" {
		return nil, Unauthorized("Invalid or expired token")
	}

	user, err := s.store.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, ServerError("Failed to load user", err)
	}
	if user == nil {
		return nil, NotFound("User not found")
	}

	if user.OTP == nil || user.OTPExpiresAt == nil || !HashEqual(*user.OTP, otp) {
		return nil, ClientError("Invalid OTP")
	}
	if !s.now().Before(*user.OTPExpiresAt) {
		return nil, ClientError("OTP has expired")
	}

	consumed, err := s.store.ConsumeOTP(ctx, user.ID, HashString(otp), s.now())
	if err != nil {
		return nil, ServerError("Failed to verify email", err)
	}
	if !consumed {
		// A concurrent request got the OTP first.
		return nil, ClientError("Invalid OTP")
	}

	return &VerifyEmailResult{Message: "Email successfully verified"}, nil
}

type LoginResult struct {
	AccessToken string     `json:"access_token"`
	User        PublicUser `json:"user"`
}

// Login authenticates by email and password. Unknown email and wrong
// password yield the same error, and the missing-user path still runs a
// hash comparison. Verification state is not required for login.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, ServerError("Login failed", err)
	}
	if user == nil {
		s.hasher.Compare(dummyPasswordHash, password)
		return nil, ClientError(invalidCredentialsMessage)
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, ClientError(invalidCredentialsMessage)
	}

	token, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, ServerError("Failed to issue access token", err)
	}

	return &LoginResult{AccessToken: token, User: user.Public()}, nil
}

type ChangePasswordResult struct {
	Message string `json:"message"`
}

// ChangePassword verifies the old password before checking the
// confirmation, then persists the new hash.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword, confirmPassword string) (*ChangePasswordResult, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, ServerError("Failed to load user", err)
	}
	if user == nil {
		return nil, NotFound("User not found")
	}

	if !s.hasher.Compare(user.PasswordHash, oldPassword) {
		return nil, ClientError("Old password is incorrect")
	}
	if newPassword != confirmPassword {
		return nil, ClientError("New password and confirm password do not match")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, ServerError("Failed to hash password", err)
	}
	if err := s.store.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, ServerError("Failed to update password", err)
	}

	return &ChangePasswordResult{Message: "Password changed successfully"}, nil
}

type MagicLinkResult struct {
	OK      bool       `json:"ok"`
	Message string     `json:"message"`
	User    PublicUser `json:"user"`
}

// GenerateMagicLink issues a short-lived, magic-link-scoped token embedding
// the user's email and dispatches it by mail.
func (s *Service) GenerateMagicLink(ctx context.Context, email string) (*MagicLinkResult, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, ServerError("Failed to load user", err)
	}
	if user == nil {
		return nil, NotFound("User is not registered")
	}

	token, err := s.tokens.IssueMagicLink(user.Email)
	if err != nil {
		return nil, ServerError("Failed to issue magic link token", err)
	}

	link := s.baseURL + "/magic-link?token=" + token
	s.dispatch(func(ctx context.Context) error {
		return s.mailer.SendMagicLink(ctx, user.Email, link, s.tokens.magicLinkTTL)
	})

	return &MagicLinkResult{
		OK:      true,
		Message: "Email sent successfully.",
		User:    user.Public(),
	}, nil
}

type MagicLinkValidation struct {
	Status string `json:"status"`
	Email  string `json:"email"`
	UserID string `json:"userId"`
}

// ValidateMagicLinkToken verifies the token's signature, expiry, and
// purpose, and resolves the embedded email to a user.
func (s *Service) ValidateMagicLinkToken(ctx context.Context, token string) (*MagicLinkValidation, error) {
	claims, err := s.tokens.Verify(token, PurposeMagicLink)
	if err != nil || claims.Email == "" {
		return nil, ClientError("Invalid JWT")
	}

	user, err := s.store.FindByEmail(ctx, claims.Email)
	if err != nil {
		return nil, ServerError("Failed to load user", err)
	}
	if user == nil {
		return nil, NotFound("User is not registered")
	}

	return &MagicLinkValidation{Status: "ok", Email: user.Email, UserID: user.ID}, nil
}

type PasswordlessLoginResult struct {
	AccessToken string `json:"access_token"`
}

// PasswordlessLogin issues an access token for an identity already proven
// by magic-link validation. No further credential check happens here.
func (s *Service) PasswordlessLogin(ctx context.Context, userID string) (*PasswordlessLoginResult, error) {
	token, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return nil, ServerError("Failed to issue access token", err)
	}
	return &PasswordlessLoginResult{AccessToken: token}, nil
}

type TwoFactorSetup struct {
	Secret      string   `json:"secret"`
	QRCodeURL   string   `json:"qr_code_url"`
	QRImage     string   `json:"qr_image,omitempty"`
	BackupCodes []string `json:"backup_codes"`
}

type Enable2FAResult struct {
	Message string         `json:"message"`
	Data    TwoFactorSetup `json:"data"`
}

// Enable2FA enrolls the user in TOTP two-factor auth: it checks the
// password, generates the secret and a batch of backup codes, and persists
// secret, codes, and the enabled flag in one atomic update. The plaintext
// backup codes are returned exactly once.
func (s *Service) Enable2FA(ctx context.Context, userID, password string) (*Enable2FAResult, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, ServerError("Failed to load user", err)
	}
	if user == nil {
		return nil, NotFound("User not found")
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, BadRequest("invalid password")
	}
	if user.TwoFactorEnabled {
		return nil, BadRequest("2FA already enabled")
	}

	enrollment, err := s.totp.Generate(user.Email)
	if err != nil {
		return nil, ServerError("Failed to generate TOTP secret", err)
	}

	plain, hashed, err := s.backup.Generate()
	if err != nil {
		return nil, ServerError("Failed to generate backup codes", err)
	}

	enabled, err := s.store.EnableTwoFactor(ctx, user.ID, enrollment.Secret, hashed)
	if err != nil {
		return nil, ServerError("Failed to enable 2FA", err)
	}
	if !enabled {
		return nil, BadRequest("2FA already enabled")
	}

	return &Enable2FAResult{
		Message: "2FA setup initiated",
		Data: TwoFactorSetup{
			Secret:      enrollment.Secret,
			QRCodeURL:   enrollment.OTPAuthURL,
			QRImage:     enrollment.QRImage,
			BackupCodes: plain,
		},
	}, nil
}

// VerifyTwoFactorCode checks a TOTP code against the enrolled secret, and
// falls back to consuming a backup code. A consumed backup code is removed
// permanently and cannot be replayed.
func (s *Service) VerifyTwoFactorCode(ctx context.Context, userID, code string) error {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return ServerError("Failed to load user", err)
	}
	if user == nil {
		return NotFound("User not found")
	}
	if !user.TwoFactorEnabled || user.TOTPSecret == nil {
		return BadRequest("2FA is not enabled")
	}

	if s.totp.Verify(*user.TOTPSecret, code) {
		return nil
	}

	if hash, ok := s.backup.Match(user.BackupCodes, code); ok {
		consumed, err := s.store.ConsumeBackupCode(ctx, user.ID, hash)
		if err != nil {
			return ServerError("Failed to consume backup code", err)
		}
		if consumed {
			return nil
		}
	}

	return ClientError("Invalid 2FA code")
}

// dispatch runs fn detached from the request. The caller's deadline must
// not cancel an email already handed off.
func (s *Service) dispatch(fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("email dispatch failed: %v", err)
		}
	}()
}
