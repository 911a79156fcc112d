package delivery

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// SenderMode selects which identity the primary transport sends as.
type SenderMode string

const (
	SenderModeAuto       SenderMode = "auto"
	SenderModeOnboarding SenderMode = "onboarding"
	SenderModeBranded    SenderMode = "branded"
)

// ParseSenderMode accepts auto, onboarding or branded in any case.
func ParseSenderMode(raw string) (SenderMode, error) {
	switch m := SenderMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case SenderModeAuto, SenderModeOnboarding, SenderModeBranded:
		return m, nil
	default:
		return "", fmt.Errorf("mode must be auto|onboarding|branded, got %q", raw)
	}
}

// SenderIdentities holds the configured From addresses.
type SenderIdentities struct {
	Branded    string
	Fallback   string
	Onboarding string
	// Unverified matches branded addresses whose domain is not yet verified.
	Unverified *regexp.Regexp
}

// Effective returns the From address the primary transport uses under mode.
func (s SenderIdentities) Effective(mode SenderMode) string {
	raw := firstNonEmpty(s.Branded, s.Onboarding)
	switch mode {
	case SenderModeOnboarding:
		return s.Onboarding
	case SenderModeBranded:
		return raw
	}
	if s.Unverified != nil && s.Unverified.MatchString(raw) {
		return s.Onboarding
	}
	return raw
}

// FallbackFor returns the fallback identity, or "" when it would repeat primary.
func (s SenderIdentities) FallbackFor(primary string) string {
	if s.Fallback == "" || s.Fallback == primary {
		return ""
	}
	return s.Fallback
}

// ModeSwitch is the runtime-adjustable sender mode. It is not persisted.
type ModeSwitch struct {
	mu   sync.RWMutex
	mode SenderMode
}

func NewModeSwitch(initial SenderMode) *ModeSwitch {
	if initial == "" {
		initial = SenderModeAuto
	}
	return &ModeSwitch{mode: initial}
}

func (m *ModeSwitch) Mode() SenderMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

func (m *ModeSwitch) Set(mode SenderMode) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
}
