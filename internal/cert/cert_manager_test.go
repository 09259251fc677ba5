package cert

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/pscan/internal/config"
)

func TestNewCertManager_GeneratesAndReloads(t *testing.T) {
	caFile := filepath.Join(t.TempDir(), "certs", "ca.pem")

	cm, err := NewCertManager(config.CertConfig{CertFile: caFile}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, caFile, cm.GetCAPath())
	assert.FileExists(t, caFile)
	assert.FileExists(t, filepath.Join(filepath.Dir(caFile), caKeyFile))

	reloaded, err := NewCertManager(config.CertConfig{CertFile: caFile}, nil)
	require.NoError(t, err)
	assert.Equal(t, cm.ca.Raw, reloaded.ca.Raw, "existing CA must be reused")
}

func TestNewCertManager_RegeneratesBrokenCA(t *testing.T) {
	caFile := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(caFile, []byte("not a pem"), 0o644))

	cm, err := NewCertManager(config.CertConfig{CertFile: caFile}, nil)
	require.NoError(t, err)
	assert.NotNil(t, cm.ca)
}

func TestGetCertificate(t *testing.T) {
	cm, err := NewCertManager(config.CertConfig{CertFile: filepath.Join(t.TempDir(), "ca.pem")}, nil)
	require.NoError(t, err)

	tests := []struct {
		host string
		ip   bool
	}{
		{host: "example.com"},
		{host: "127.0.0.1", ip: true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			c, err := cm.GetCertificate(tt.host)
			require.NoError(t, err)

			leaf, err := x509.ParseCertificate(c.Certificate[0])
			require.NoError(t, err)

			_, err = leaf.Verify(x509.VerifyOptions{DNSName: tt.host, Roots: cm.CertPool()})
			assert.NoError(t, err)
			if tt.ip {
				assert.Len(t, leaf.IPAddresses, 1)
			} else {
				assert.Equal(t, []string{tt.host}, leaf.DNSNames)
			}

			cached, err := cm.GetCertificate(tt.host)
			require.NoError(t, err)
			assert.Same(t, c, cached)
		})
	}
}
