// Package captcha issues short-lived image captchas for the login and
// registration endpoints. Codes live in an in-process TTL store; validation
// is one-shot, so a code cannot be replayed after a failed or successful
// attempt.
package captcha

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const digits = "0123456789"

type entry struct {
	code      string
	expiresAt time.Time
}

// Service generates captcha challenges and validates answers.
type Service struct {
	mu      sync.Mutex
	entries map[string]entry

	width  int
	height int
	length int
	ttl    time.Duration
	now    func() time.Time
}

// Result is returned to the client: an opaque id plus the rendered image as a
// data URI. The code itself never leaves the server.
type Result struct {
	CaptchaID   string `json:"captchaId"`
	ImageBase64 string `json:"imageBase64"`
	ExpireIn    int    `json:"expireIn"`
}

func New(width, height, length int, ttl time.Duration) *Service {
	return &Service{
		entries: make(map[string]entry),
		width:   width,
		height:  height,
		length:  length,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Generate creates a new challenge and stores its code until the TTL expires.
func (s *Service) Generate() (*Result, error) {
	code, err := randomCode(s.length)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	id := strings.ReplaceAll(uuid.New().String(), "-", "")

	image, err := renderPNG(code, s.width, s.height)
	if err != nil {
		return nil, fmt.Errorf("render captcha: %w", err)
	}

	s.mu.Lock()
	s.evictExpiredLocked()
	s.entries[id] = entry{code: code, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()

	return &Result{
		CaptchaID:   id,
		ImageBase64: "data:image/png;base64," + image,
		ExpireIn:    int(s.ttl.Seconds()),
	}, nil
}

// Validate checks the answer for a challenge id. The stored code is deleted
// on every lookup, hit or miss, so brute-forcing a single id is impossible.
func (s *Service) Validate(id, answer string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("captcha id is required")
	}
	if strings.TrimSpace(answer) == "" {
		return fmt.Errorf("captcha code is required")
	}

	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if !ok || s.now().After(e.expiresAt) {
		return fmt.Errorf("captcha expired or not found")
	}
	if !strings.EqualFold(e.code, strings.TrimSpace(answer)) {
		return fmt.Errorf("captcha code mismatch")
	}
	return nil
}

func (s *Service) evictExpiredLocked() {
	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

func randomCode(length int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(digits)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(digits[n.Int64()])
	}
	return b.String(), nil
}
