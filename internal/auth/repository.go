package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CredentialStore is the durable record of users the service orchestrates
// against. Find methods return (nil, nil) when no record exists. The
// Consume* methods are conditional single-statement updates: they report
// false when the guarded value was already gone, so concurrent attempts on
// the same secret can succeed at most once.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	ConsumeOTP(ctx context.Context, userID, otpHash string, now time.Time) (bool, error)
	EnableTwoFactor(ctx context.Context, userID, totpSecret string, backupCodes []string) (bool, error)
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)
}

type UserRepository struct {
	DB *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{DB: db}
}

const userColumns = `"id","email","password","firstName","lastName","phoneNumber","avatarUrl","isVerified","otp","otpExpiresAt","isTwoFactorEnabled","totpSecret","backupCodes","createdAt","updatedAt"`

func (r *UserRepository) Create(ctx context.Context, user *User) (*User, error) {
	id := user.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
		INSERT INTO "User"
		("id","email","password","firstName","lastName","phoneNumber","avatarUrl","isVerified","otp","otpExpiresAt")
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING ` + userColumns

	row := r.DB.QueryRow(ctx, query,
		id,
		user.Email,
		user.PasswordHash,
		user.Profile.FirstName,
		user.Profile.LastName,
		user.Profile.PhoneNumber,
		user.Profile.AvatarURL,
		user.IsVerified,
		user.OTP,
		user.OTPExpiresAt,
	)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM "User" WHERE LOWER("email")=LOWER($1)`
	row := r.DB.QueryRow(ctx, query, email)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM "User" WHERE "id"=$1`
	row := r.DB.QueryRow(ctx, query, id)
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE "User"
		SET "password"=$1, "updatedAt"=NOW()
		WHERE "id"=$2
	`, passwordHash, userID)
	return err
}

// ConsumeOTP marks the email verified and clears the pending OTP in one
// conditional update. The guard on the stored hash and expiry means two
// concurrent verification attempts cannot both succeed.
func (r *UserRepository) ConsumeOTP(ctx context.Context, userID, otpHash string, now time.Time) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE "User"
		SET "isVerified"=TRUE, "otp"=NULL, "otpExpiresAt"=NULL, "updatedAt"=NOW()
		WHERE "id"=$1 AND "otp"=$2 AND "otpExpiresAt" > $3
	`, userID, otpHash, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// EnableTwoFactor stores the secret, the hashed backup codes, and the
// enabled flag in a single update keyed by user id, conditional on 2FA not
// already being enabled.
func (r *UserRepository) EnableTwoFactor(ctx context.Context, userID, totpSecret string, backupCodes []string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE "User"
		SET "totpSecret"=$1, "backupCodes"=$2, "isTwoFactorEnabled"=TRUE, "updatedAt"=NOW()
		WHERE "id"=$3 AND "isTwoFactorEnabled"=FALSE
	`, totpSecret, backupCodes, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ConsumeBackupCode removes exactly the matched hash from the stored set.
func (r *UserRepository) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE "User"
		SET "backupCodes"=array_remove("backupCodes", $1), "updatedAt"=NOW()
		WHERE "id"=$2 AND $1 = ANY("backupCodes")
	`, codeHash, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		id           string
		email        string
		password     string
		firstName    sql.NullString
		lastName     sql.NullString
		phoneNumber  sql.NullString
		avatarURL    sql.NullString
		isVerified   bool
		otp          sql.NullString
		otpExpiresAt sql.NullTime
		twoFA        bool
		totpSecret   sql.NullString
		backupCodes  []string
		createdAt    time.Time
		updatedAt    time.Time
	)

	if err := row.Scan(
		&id,
		&email,
		&password,
		&firstName,
		&lastName,
		&phoneNumber,
		&avatarURL,
		&isVerified,
		&otp,
		&otpExpiresAt,
		&twoFA,
		&totpSecret,
		&backupCodes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	return &User{
		ID:           id,
		Email:        email,
		PasswordHash: password,
		Profile: Profile{
			FirstName:   firstName.String,
			LastName:    lastName.String,
			PhoneNumber: phoneNumber.String,
			AvatarURL:   avatarURL.String,
		},
		IsVerified:       isVerified,
		OTP:              nullStringPtr(otp),
		OTPExpiresAt:     nullTimePtr(otpExpiresAt),
		TwoFactorEnabled: twoFA,
		TOTPSecret:       nullStringPtr(totpSecret),
		BackupCodes:      backupCodes,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}
