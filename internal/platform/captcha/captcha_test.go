package captcha

import (
	"strings"
	"testing"
	"time"
)

func TestGenerate_ReturnsImageAndID(t *testing.T) {
	s := New(120, 40, 4, 2*time.Minute)

	res, err := s.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.CaptchaID == "" {
		t.Error("expected non-empty captcha id")
	}
	if !strings.HasPrefix(res.ImageBase64, "data:image/png;base64,") {
		t.Errorf("expected data URI prefix, got %q", res.ImageBase64[:30])
	}
	if res.ExpireIn != 120 {
		t.Errorf("expected ExpireIn 120, got %d", res.ExpireIn)
	}
}

func TestValidate_CorrectAnswer(t *testing.T) {
	s := New(120, 40, 4, 2*time.Minute)

	res, err := s.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	s.mu.Lock()
	code := s.entries[res.CaptchaID].code
	s.mu.Unlock()

	if err := s.Validate(res.CaptchaID, code); err != nil {
		t.Errorf("expected valid answer to pass, got %v", err)
	}
}

func TestValidate_OneShot(t *testing.T) {
	s := New(120, 40, 4, 2*time.Minute)

	res, _ := s.Generate()

	s.mu.Lock()
	code := s.entries[res.CaptchaID].code
	s.mu.Unlock()

	if err := s.Validate(res.CaptchaID, code); err != nil {
		t.Fatalf("first validate failed: %v", err)
	}
	if err := s.Validate(res.CaptchaID, code); err == nil {
		t.Error("expected second validate of same id to fail")
	}
}

func TestValidate_WrongAnswerConsumesCode(t *testing.T) {
	s := New(120, 40, 4, 2*time.Minute)

	res, _ := s.Generate()

	s.mu.Lock()
	code := s.entries[res.CaptchaID].code
	s.mu.Unlock()

	if err := s.Validate(res.CaptchaID, "nope"); err == nil {
		t.Fatal("expected wrong answer to fail")
	}
	if err := s.Validate(res.CaptchaID, code); err == nil {
		t.Error("expected code to be consumed by the failed attempt")
	}
}

func TestValidate_Expired(t *testing.T) {
	s := New(120, 40, 4, 2*time.Minute)
	base := time.Now()
	s.now = func() time.Time { return base }

	res, _ := s.Generate()

	s.mu.Lock()
	code := s.entries[res.CaptchaID].code
	s.mu.Unlock()

	s.now = func() time.Time { return base.Add(3 * time.Minute) }

	if err := s.Validate(res.CaptchaID, code); err == nil {
		t.Error("expected expired captcha to fail validation")
	}
}

func TestValidate_MissingInputs(t *testing.T) {
	s := New(120, 40, 4, 2*time.Minute)

	if err := s.Validate("", "1234"); err == nil {
		t.Error("expected empty id to fail")
	}
	if err := s.Validate("some-id", ""); err == nil {
		t.Error("expected empty answer to fail")
	}
}

func TestRandomCode_DigitsOnly(t *testing.T) {
	code, err := randomCode(6)
	if err != nil {
		t.Fatalf("randomCode failed: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 characters, got %d", len(code))
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Errorf("unexpected character %q in code", r)
		}
	}
}
