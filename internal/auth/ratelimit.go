package auth

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles the abuse-prone flows at the HTTP boundary. The
// core service never consults it; clearing and counting stay outside the
// state machine.
type RateLimiter struct {
	Redis *redis.Client
}

const (
	loginMaxAttempts     = 5
	loginAttemptTTL      = 10 * time.Minute
	loginBanTTL          = 1 * time.Hour
	verifyMaxAttempts    = 5
	verifyAttemptTTL     = 10 * time.Minute
	registerMaxAttempts  = 10
	registerAttemptTTL   = 30 * time.Minute
	MagicLinkCooldown    = 60 * time.Second
	twoFactorMaxAttempts = 5
	twoFactorAttemptTTL  = 10 * time.Minute
)

func (r *RateLimiter) loginAttemptKey(ip string) string {
	return "login_attempts:" + ip
}

func (r *RateLimiter) loginBanKey(ip string) string {
	return "login_ban:" + ip
}

func (r *RateLimiter) verifyAttemptKey(key string) string {
	return "verify_attempts:" + strings.ToLower(key)
}

func (r *RateLimiter) registerAttemptKey(ip string) string {
	return "register_attempts:" + ip
}

func (r *RateLimiter) twoFactorAttemptKey(userID string) string {
	return "2fa_attempts:" + userID
}

func (r *RateLimiter) magicLinkCooldownKey(email string) string {
	return "magic_link_cooldown:" + strings.ToLower(email)
}

func (r *RateLimiter) IsIPBanned(ctx context.Context, ip string) bool {
	exists, _ := r.Redis.Exists(ctx, r.loginBanKey(ip)).Result()
	return exists == 1
}

func (r *RateLimiter) RegisterLoginFailure(ctx context.Context, ip string) error {
	key := r.loginAttemptKey(ip)

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, loginAttemptTTL)
	}
	if attempts >= loginMaxAttempts {
		r.Redis.Set(ctx, r.loginBanKey(ip), "1", loginBanTTL)
		r.Redis.Expire(ctx, key, loginBanTTL)
	}
	return nil
}

func (r *RateLimiter) ResetLogin(ctx context.Context, ip string) {
	r.Redis.Del(ctx, r.loginAttemptKey(ip))
}

func (r *RateLimiter) RegisterVerifyAttempt(ctx context.Context, attemptKey string) (bool, time.Duration, error) {
	key := r.verifyAttemptKey(attemptKey)

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, verifyAttemptTTL)
	}
	ttl, _ := r.Redis.TTL(ctx, key).Result()
	return attempts >= verifyMaxAttempts, ttl, nil
}

func (r *RateLimiter) ResetVerify(ctx context.Context, attemptKey string) {
	r.Redis.Del(ctx, r.verifyAttemptKey(attemptKey))
}

func (r *RateLimiter) RegisterRegisterAttempt(ctx context.Context, ip string) (bool, time.Duration, error) {
	key := r.registerAttemptKey(ip)
	if key == "register_attempts:" {
		return false, 0, nil
	}

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, registerAttemptTTL)
	}
	ttl, _ := r.Redis.TTL(ctx, key).Result()
	return attempts >= registerMaxAttempts, ttl, nil
}

func (r *RateLimiter) RegisterTwoFactorFailure(ctx context.Context, userID string) (bool, error) {
	key := r.twoFactorAttemptKey(userID)
	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, twoFactorAttemptTTL)
	}
	return attempts >= twoFactorMaxAttempts, nil
}

func (r *RateLimiter) ResetTwoFactor(ctx context.Context, userID string) {
	r.Redis.Del(ctx, r.twoFactorAttemptKey(userID))
}

// MagicLinkCooldownTTL reports how long until another magic link may be
// requested for the email, zero when none is pending.
func (r *RateLimiter) MagicLinkCooldownTTL(ctx context.Context, email string) time.Duration {
	ttl, err := r.Redis.TTL(ctx, r.magicLinkCooldownKey(email)).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}

func (r *RateLimiter) SetMagicLinkCooldown(ctx context.Context, email string) {
	r.Redis.Set(ctx, r.magicLinkCooldownKey(email), "1", MagicLinkCooldown)
}
