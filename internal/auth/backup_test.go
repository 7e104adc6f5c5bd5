package auth

import "testing"

func TestBackupCodeGenerate(t *testing.T) {
	m := NewBackupCodeManager()

	plain, hashed, err := m.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(plain) != 8 || len(hashed) != 8 {
		t.Fatalf("got %d plain / %d hashed codes, want 8/8", len(plain), len(hashed))
	}

	seen := map[string]bool{}
	for i, code := range plain {
		if len(code) != 10 {
			t.Errorf("code %q has length %d, want 10", code, len(code))
		}
		if seen[code] {
			t.Errorf("duplicate code %q", code)
		}
		seen[code] = true
		if hashed[i] != HashString(code) {
			t.Errorf("hashed[%d] does not match HashString(plain[%d])", i, i)
		}
	}
}

func TestBackupCodeMatch(t *testing.T) {
	m := NewBackupCodeManager()
	plain, hashed, err := m.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	hash, ok := m.Match(hashed, plain[3])
	if !ok {
		t.Fatal("Match did not find a generated code")
	}
	if hash != hashed[3] {
		t.Errorf("Match returned %q, want %q", hash, hashed[3])
	}

	if _, ok := m.Match(hashed, "not-a-code"); ok {
		t.Error("Match accepted an unknown code")
	}
	if _, ok := m.Match(nil, plain[0]); ok {
		t.Error("Match accepted a code against an empty set")
	}
}
