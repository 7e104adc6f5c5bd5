package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ---- fakes ----

type memStore struct {
	mu       sync.Mutex
	users    map[string]*User
	failWith error
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*User{}}
}

func copyUser(u *User) *User {
	cp := *u
	cp.BackupCodes = append([]string(nil), u.BackupCodes...)
	return &cp
}

func (m *memStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (m *memStore) FindByID(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (m *memStore) Create(ctx context.Context, user *User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	cp := copyUser(user)
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.users[cp.ID] = cp
	return copyUser(cp), nil
}

func (m *memStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	u, ok := m.users[userID]
	if !ok {
		return errors.New("no such user")
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memStore) ConsumeOTP(ctx context.Context, userID, otpHash string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	u, ok := m.users[userID]
	if !ok || u.OTP == nil || u.OTPExpiresAt == nil {
		return false, nil
	}
	if *u.OTP != otpHash || !now.Before(*u.OTPExpiresAt) {
		return false, nil
	}
	u.IsVerified = true
	u.OTP = nil
	u.OTPExpiresAt = nil
	return true, nil
}

func (m *memStore) EnableTwoFactor(ctx context.Context, userID, totpSecret string, backupCodes []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return false, m.failWith
	}
	u, ok := m.users[userID]
	if !ok || u.TwoFactorEnabled {
		return false, nil
	}
	u.TwoFactorEnabled = true
	u.TOTPSecret = &totpSecret
	u.BackupCodes = append([]string(nil), backupCodes...)
	return true, nil
}

func (m *memStore) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return false, nil
	}
	for i, h := range u.BackupCodes {
		if h == codeHash {
			u.BackupCodes = append(u.BackupCodes[:i], u.BackupCodes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) get(t *testing.T, id string) *User {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		t.Fatalf("user %s not in store", id)
	}
	return copyUser(u)
}

type fakeMailer struct {
	codes chan string
	links chan string
	err   error
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{codes: make(chan string, 4), links: make(chan string, 4)}
}

func (f *fakeMailer) SendVerificationCode(ctx context.Context, to, code string, validFor time.Duration) error {
	f.codes <- code
	return f.err
}

func (f *fakeMailer) SendMagicLink(ctx context.Context, to, link string, validFor time.Duration) error {
	f.links <- link
	return f.err
}

func waitFor(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched email")
		return ""
	}
}

func newTestService(t *testing.T) (*Service, *memStore, *fakeMailer) {
	t.Helper()
	store := newMemStore()
	mailer := newFakeMailer()
	tokens := NewTokenIssuer([]byte("test-secret"), "TestApp", time.Hour, 15*time.Minute)
	svc := NewService(
		store,
		&BcryptHasher{Cost: bcrypt.MinCost},
		tokens,
		NewOTPGenerator(),
		NewTOTPCodec("TestApp"),
		NewBackupCodeManager(),
		mailer,
		"http://localhost:3000",
	)
	return svc, store, mailer
}

func signUp(t *testing.T, svc *Service, email string) *SignUpResult {
	t.Helper()
	res, err := svc.SignUp(context.Background(), SignUpInput{
		FirstName:   "John",
		LastName:    "Doe",
		Email:       email,
		Password:    "password123",
		PhoneNumber: "1234567890",
	})
	require.NoError(t, err)
	return res
}

// ---- signUp ----

func TestSignUpCreatesUnverifiedUserWithPendingOTP(t *testing.T) {
	svc, store, mailer := newTestService(t)

	res := signUp(t, svc, "john.doe@example.com")

	require.Equal(t, "john.doe@example.com", res.User.Email)
	require.Equal(t, "John Doe", res.User.Name)
	require.False(t, res.User.IsVerified)
	require.NotEmpty(t, res.AccessToken)

	stored := store.get(t, res.User.ID)
	require.False(t, stored.IsVerified)
	require.NotNil(t, stored.OTP)
	require.NotNil(t, stored.OTPExpiresAt)
	require.True(t, stored.OTPExpiresAt.After(time.Now()))

	// The response never exposes secret material, and the stored OTP is a
	// hash of what was mailed, not the plaintext.
	code := waitFor(t, mailer.codes)
	require.NotEqual(t, code, *stored.OTP)
	require.Equal(t, HashString(code), *stored.OTP)
	require.NotContains(t, res.Message, code)
}

func TestSignUpIssuesUsableAccessToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	res := signUp(t, svc, "token@example.com")

	claims, err := svc.tokens.Verify(res.AccessToken, PurposeAccess)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, claims.UserID)
}

func TestSignUpConflictOnExistingEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	signUp(t, svc, "dup@example.com")

	_, err := svc.SignUp(context.Background(), SignUpInput{
		FirstName:   "Jane",
		LastName:    "Roe",
		Email:       "DUP@example.com",
		Password:    "another-pass-1",
		PhoneNumber: "0987654321",
	})
	require.Error(t, err)
	require.Equal(t, KindConflict, KindOf(err))
}

func TestSignUpRequiresAllFields(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.SignUp(context.Background(), SignUpInput{Email: "a@b.com", Password: "password123"})
	require.Error(t, err)
	require.Equal(t, KindBadRequest, KindOf(err))
}

// ---- verifyEmail ----

func TestVerifyEmailSuccessAndSingleUse(t *testing.T) {
	svc, store, mailer := newTestService(t)

	res := signUp(t, svc, "verify@example.com")
	code := waitFor(t, mailer.codes)

	out, err := svc.VerifyEmail(context.Background(), res.AccessToken, code)
	require.NoError(t, err)
	require.Equal(t, "Email successfully verified", out.Message)

	stored := store.get(t, res.User.ID)
	require.True(t, stored.IsVerified)
	require.Nil(t, stored.OTP)
	require.Nil(t, stored.OTPExpiresAt)

	// The OTP is consumable at most once.
	_, err = svc.VerifyEmail(context.Background(), res.AccessToken, code)
	require.Error(t, err)
	require.Equal(t, KindClient, KindOf(err))
}

func TestVerifyEmailWrongCode(t *testing.T) {
	svc, _, mailer := newTestService(t)

	res := signUp(t, svc, "wrong@example.com")
	code := waitFor(t, mailer.codes)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	_, err := svc.VerifyEmail(context.Background(), res.AccessToken, wrong)
	require.Error(t, err)
	require.Equal(t, KindClient, KindOf(err))
	e, _ := AsError(err)
	require.Equal(t, "Invalid OTP", e.Message)
}

func TestVerifyEmailExpiredCode(t *testing.T) {
	svc, _, mailer := newTestService(t)

	res := signUp(t, svc, "expired@example.com")
	code := waitFor(t, mailer.codes)

	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }

	_, err := svc.VerifyEmail(context.Background(), res.AccessToken, code)
	require.Error(t, err)
	require.Equal(t, KindClient, KindOf(err))
	e, _ := AsError(err)
	require.Equal(t, "OTP has expired", e.Message)
}

func TestVerifyEmailBadToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.VerifyEmail(context.Background(), "not.a.jwt", "123456")
	require.Error(t, err)
	require.Equal(t, KindUnauthorized, KindOf(err))
}

func TestVerifyEmailUnknownSubject(t *testing.T) {
	svc, _, _ := newTestService(t)

	token, err := svc.tokens.IssueAccess("ghost")
	require.NoError(t, err)

	_, err = svc.VerifyEmail(context.Background(), token, "123456")
	require.Error(t, err)
	require.Equal(t, KindNotFound, KindOf(err))
}

// ---- login ----

func TestLoginSuccess(t *testing.T) {
	svc, _, _ := newTestService(t)
	res := signUp(t, svc, "login@example.com")

	out, err := svc.Login(context.Background(), "login@example.com", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, out.AccessToken)
	require.Equal(t, res.User.ID, out.User.ID)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _, _ := newTestService(t)
	signUp(t, svc, "someone@example.com")

	_, errUnknown := svc.Login(context.Background(), "nobody@example.com", "password123")
	_, errWrongPass := svc.Login(context.Background(), "someone@example.com", "wrong-password")

	require.Error(t, errUnknown)
	require.Error(t, errWrongPass)
	require.Equal(t, KindClient, KindOf(errUnknown))
	require.Equal(t, KindClient, KindOf(errWrongPass))

	e1, _ := AsError(errUnknown)
	e2, _ := AsError(errWrongPass)
	require.Equal(t, e1.Message, e2.Message)
}

// ---- changePassword ----

func TestChangePasswordSuccess(t *testing.T) {
	svc, _, _ := newTestService(t)
	res := signUp(t, svc, "change@example.com")

	out, err := svc.ChangePassword(context.Background(), res.User.ID, "password123", "newpassword1", "newpassword1")
	require.NoError(t, err)
	require.Equal(t, "Password changed successfully", out.Message)

	_, err = svc.Login(context.Background(), "change@example.com", "newpassword1")
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), "change@example.com", "password123")
	require.Error(t, err)
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	svc, _, _ := newTestService(t)
	res := signUp(t, svc, "old@example.com")

	// Matching confirmation does not rescue a wrong old password.
	_, err := svc.ChangePassword(context.Background(), res.User.ID, "wrong-old", "newpassword1", "newpassword1")
	require.Error(t, err)
	e, _ := AsError(err)
	require.Equal(t, KindClient, e.Kind)
	require.Equal(t, "Old password is incorrect", e.Message)
}

func TestChangePasswordConfirmationMismatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	res := signUp(t, svc, "mismatch@example.com")

	_, err := svc.ChangePassword(context.Background(), res.User.ID, "password123", "newpassword1", "different1")
	require.Error(t, err)
	e, _ := AsError(err)
	require.Equal(t, KindClient, e.Kind)
	require.Equal(t, "New password and confirm password do not match", e.Message)
}

func TestChangePasswordUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ChangePassword(context.Background(), "missing", "a", "b", "b")
	require.Error(t, err)
	require.Equal(t, KindNotFound, KindOf(err))
}

// ---- magic link ----

func TestGenerateMagicLinkUnregisteredEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GenerateMagicLink(context.Background(), "nobody@example.com")
	require.Error(t, err)
	e, _ := AsError(err)
	require.Equal(t, KindNotFound, e.Kind)
	require.Equal(t, "User is not registered", e.Message)
}

func TestMagicLinkRoundTrip(t *testing.T) {
	svc, _, mailer := newTestService(t)
	res := signUp(t, svc, "magic@example.com")
	waitFor(t, mailer.codes)

	out, err := svc.GenerateMagicLink(context.Background(), "magic@example.com")
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Equal(t, "Email sent successfully.", out.Message)
	require.Equal(t, res.User.ID, out.User.ID)

	link := waitFor(t, mailer.links)
	require.Contains(t, link, "http://localhost:3000/magic-link?token=")
	token := strings.TrimPrefix(link, "http://localhost:3000/magic-link?token=")

	validation, err := svc.ValidateMagicLinkToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "ok", validation.Status)
	require.Equal(t, "magic@example.com", validation.Email)
	require.Equal(t, res.User.ID, validation.UserID)

	login, err := svc.PasswordlessLogin(context.Background(), validation.UserID)
	require.NoError(t, err)

	claims, err := svc.tokens.Verify(login.AccessToken, PurposeAccess)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, claims.UserID)
}

func TestValidateMagicLinkTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ValidateMagicLinkToken(context.Background(), "garbage")
	require.Error(t, err)
	e, _ := AsError(err)
	require.Equal(t, "Invalid JWT", e.Message)
}

func TestValidateMagicLinkTokenRejectsWrongPurpose(t *testing.T) {
	svc, _, _ := newTestService(t)
	res := signUp(t, svc, "purpose@example.com")

	// An access token must not pass as a magic link.
	_, err := svc.ValidateMagicLinkToken(context.Background(), res.AccessToken)
	require.Error(t, err)
	e, _ := AsError(err)
	require.Equal(t, "Invalid JWT", e.Message)
}

// ---- enable2FA ----

func TestEnable2FASuccess(t *testing.T) {
	svc, store, _ := newTestService(t)
	res := signUp(t, svc, "twofa@example.com")

	out, err := svc.Enable2FA(context.Background(), res.User.ID, "password123")
	require.NoError(t, err)
	require.Equal(t, "2FA setup initiated", out.Message)
	require.NotEmpty(t, out.Data.Secret)
	require.Contains(t, out.Data.QRCodeURL, "otpauth://totp/")
	require.Contains(t, out.Data.QRCodeURL, "issuer=TestApp")
	require.Len(t, out.Data.BackupCodes, 8)

	stored := store.get(t, res.User.ID)
	require.True(t, stored.TwoFactorEnabled)
	require.NotNil(t, stored.TOTPSecret)
	require.Equal(t, out.Data.Secret, *stored.TOTPSecret)
	require.Len(t, stored.BackupCodes, 8)

	// Stored codes are hashes of the returned plaintext.
	for i, code := range out.Data.BackupCodes {
		require.NotEqual(t, code, stored.BackupCodes[i])
		require.Equal(t, HashString(code), stored.BackupCodes[i])
	}
}

func TestEnable2FAInvalidPassword(t *testing.T) {
	svc, store, _ := newTestService(t)
	res := signUp(t, svc, "badpass@example.com")

	_, err := svc.Enable2FA(context.Background(), res.User.ID, "wrongpassword")
	require.Error(t, err)
	e, _ := AsError(err)
	require.Equal(t, KindBadRequest, e.Kind)
	require.Equal(t, "invalid password", e.Message)

	stored := store.get(t, res.User.ID)
	require.False(t, stored.TwoFactorEnabled)
	require.Nil(t, stored.TOTPSecret)
	require.Empty(t, stored.BackupCodes)
}

func TestEnable2FAAlreadyEnabled(t *testing.T) {
	svc, store, _ := newTestService(t)
	res := signUp(t, svc, "already@example.com")

	first, err := svc.Enable2FA(context.Background(), res.User.ID, "password123")
	require.NoError(t, err)

	_, err = svc.Enable2FA(context.Background(), res.User.ID, "password123")
	require.Error(t, err)
	e, _ := AsError(err)
	require.Equal(t, KindBadRequest, e.Kind)
	require.Equal(t, "2FA already enabled", e.Message)

	stored := store.get(t, res.User.ID)
	require.Equal(t, first.Data.Secret, *stored.TOTPSecret)
	require.Len(t, stored.BackupCodes, 8)
}

func TestEnable2FAUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Enable2FA(context.Background(), "missing", "password123")
	require.Error(t, err)
	require.Equal(t, KindNotFound, KindOf(err))
}

func TestEnable2FAStoreFailureBecomesServerError(t *testing.T) {
	svc, store, _ := newTestService(t)

	store.failWith = errors.New("database error")
	_, err := svc.Enable2FA(context.Background(), "user123", "password123")
	require.Error(t, err)
	require.Equal(t, KindServer, KindOf(err))
}

// ---- 2FA verification ----

func TestVerifyTwoFactorCodeWithTOTP(t *testing.T) {
	svc, _, _ := newTestService(t)
	res := signUp(t, svc, "totp@example.com")

	out, err := svc.Enable2FA(context.Background(), res.User.ID, "password123")
	require.NoError(t, err)

	code, err := totp.GenerateCode(out.Data.Secret, time.Now())
	require.NoError(t, err)

	require.NoError(t, svc.VerifyTwoFactorCode(context.Background(), res.User.ID, code))
}

func TestVerifyTwoFactorBackupCodeSingleUse(t *testing.T) {
	svc, store, _ := newTestService(t)
	res := signUp(t, svc, "backup@example.com")

	out, err := svc.Enable2FA(context.Background(), res.User.ID, "password123")
	require.NoError(t, err)

	code := out.Data.BackupCodes[0]
	require.NoError(t, svc.VerifyTwoFactorCode(context.Background(), res.User.ID, code))

	stored := store.get(t, res.User.ID)
	require.Len(t, stored.BackupCodes, 7)

	// A consumed backup code never works again.
	err = svc.VerifyTwoFactorCode(context.Background(), res.User.ID, code)
	require.Error(t, err)
	require.Equal(t, KindClient, KindOf(err))
}

func TestVerifyTwoFactorCodeRequiresEnrollment(t *testing.T) {
	svc, _, _ := newTestService(t)
	res := signUp(t, svc, "notenrolled@example.com")

	err := svc.VerifyTwoFactorCode(context.Background(), res.User.ID, "123456")
	require.Error(t, err)
	require.Equal(t, KindBadRequest, KindOf(err))
}
