// Package policy evaluates navigation and request URLs against the
// active rule snapshot and the security configuration.
package policy

import (
	"go.uber.org/zap"

	"github.com/voyx/engine/internal/settings"
)

// Namespace is the settings namespace for security toggles.
const Namespace = "security"

// SecurityConfig is the flat record of security toggles consulted on
// every policy decision.
type SecurityConfig struct {
	HTTPSOnly     bool   `json:"https_only"`
	BlockAds      bool   `json:"block_ads"`
	BlockTrackers bool   `json:"block_trackers"`
	BlockPhishing bool   `json:"block_phishing"`
	StrictPrivacy bool   `json:"strict_privacy"`
	VPNEnabled    bool   `json:"vpn_enabled"`
	VPNServer     string `json:"vpn_server"`
}

// DefaultConfig returns the shipped defaults.
func DefaultConfig() SecurityConfig {
	return SecurityConfig{
		HTTPSOnly:     false,
		BlockAds:      true,
		BlockTrackers: true,
		BlockPhishing: true,
		StrictPrivacy: false,
		VPNEnabled:    false,
		VPNServer:     "US Server",
	}
}

// ConfigManager reads and writes the security configuration through the
// settings store. Every setter persists immediately; a persistence error
// is returned but the in-memory value still takes effect for the current
// session.
type ConfigManager struct {
	store  *settings.Store
	logger *zap.Logger
}

// NewConfigManager creates a manager over a settings store.
func NewConfigManager(store *settings.Store, logger *zap.Logger) *ConfigManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigManager{store: store, logger: logger}
}

// Current reads the live configuration. Called on every decision so a
// toggle flips take effect without any cache invalidation step.
func (m *ConfigManager) Current() SecurityConfig {
	def := DefaultConfig()
	return SecurityConfig{
		HTTPSOnly:     m.store.GetBool(Namespace, "https_only", def.HTTPSOnly),
		BlockAds:      m.store.GetBool(Namespace, "block_ads", def.BlockAds),
		BlockTrackers: m.store.GetBool(Namespace, "block_trackers", def.BlockTrackers),
		BlockPhishing: m.store.GetBool(Namespace, "block_phishing", def.BlockPhishing),
		StrictPrivacy: m.store.GetBool(Namespace, "strict_privacy", def.StrictPrivacy),
		VPNEnabled:    m.store.GetBool(Namespace, "vpn_enabled", def.VPNEnabled),
		VPNServer:     m.store.GetString(Namespace, "vpn_server", def.VPNServer),
	}
}

// SetHTTPSOnly enables or disables HTTPS-only mode.
func (m *ConfigManager) SetHTTPSOnly(enabled bool) error {
	return m.setBool("https_only", enabled)
}

// SetBlockAds enables or disables ad blocking.
func (m *ConfigManager) SetBlockAds(enabled bool) error {
	return m.setBool("block_ads", enabled)
}

// SetBlockTrackers enables or disables tracker blocking.
func (m *ConfigManager) SetBlockTrackers(enabled bool) error {
	return m.setBool("block_trackers", enabled)
}

// SetBlockPhishing enables or disables phishing protection.
func (m *ConfigManager) SetBlockPhishing(enabled bool) error {
	return m.setBool("block_phishing", enabled)
}

// SetStrictPrivacy enables or disables strict privacy mode.
func (m *ConfigManager) SetStrictPrivacy(enabled bool) error {
	return m.setBool("strict_privacy", enabled)
}

// SetVPNEnabled enables or disables VPN routing.
func (m *ConfigManager) SetVPNEnabled(enabled bool) error {
	return m.setBool("vpn_enabled", enabled)
}

// SetVPNServer records the VPN server location.
func (m *ConfigManager) SetVPNServer(server string) error {
	err := m.store.SetString(Namespace, "vpn_server", server)
	if err != nil {
		m.logger.Error("failed to persist security setting",
			zap.String("key", "vpn_server"), zap.Error(err))
	}
	return err
}

func (m *ConfigManager) setBool(key string, value bool) error {
	err := m.store.SetBool(Namespace, key, value)
	if err != nil {
		m.logger.Error("failed to persist security setting",
			zap.String("key", key), zap.Error(err))
	}
	return err
}
