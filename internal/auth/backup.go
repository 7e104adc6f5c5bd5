package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// BackupCodeManager produces fixed-size batches of single-use recovery
// codes. Plaintext codes are shown to the user exactly once; only their
// hashes are stored, and consumption removes a code permanently.
type BackupCodeManager struct {
	Count  int
	Length int
}

func NewBackupCodeManager() *BackupCodeManager {
	return &BackupCodeManager{Count: 8, Length: 5}
}

// Generate returns the plaintext batch alongside the hashes to persist.
func (m *BackupCodeManager) Generate() (plain []string, hashed []string, err error) {
	count := m.Count
	if count <= 0 {
		count = 8
	}
	length := m.Length
	if length <= 0 {
		length = 5
	}

	plain = make([]string, 0, count)
	hashed = make([]string, 0, count)
	for i := 0; i < count; i++ {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, err
		}
		code := hex.EncodeToString(buf)
		plain = append(plain, code)
		hashed = append(hashed, HashString(code))
	}
	return plain, hashed, nil
}

// Match reports whether code matches one of the stored hashes and returns
// that hash so the caller can consume it.
func (m *BackupCodeManager) Match(stored []string, code string) (string, bool) {
	for _, h := range stored {
		if HashEqual(h, code) {
			return h, true
		}
	}
	return "", false
}
