package cert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BetterCallFirewall/pscan/internal/config"
)

const caKeyFile = "ca-key.pem"

var errNoPEM = errors.New("no PEM block found")

// Manager корневой CA прокси и кэш выпущенных им сертификатов хостов для MITM.
type Manager struct {
	ca     *x509.Certificate
	caKey  *rsa.PrivateKey
	certs  map[string]*tls.Certificate
	mu     sync.RWMutex
	caFile string
	logger *zap.Logger
}

// NewCertManager загружает CA из cfg.CertFile или генерирует новый, если файла нет.
func NewCertManager(cfg config.CertConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cm := &Manager{
		certs:  make(map[string]*tls.Certificate),
		caFile: cfg.CertFile,
		logger: logger,
	}

	if err := cm.loadCA(); err != nil {
		logger.Info("CA not loaded, generating a new one", zap.String("file", cm.caFile), zap.Error(err))
		if err := cm.generateCA(); err != nil {
			return nil, fmt.Errorf("generate CA: %w", err)
		}
	}

	return cm, nil
}

func (cm *Manager) keyPath() string {
	return filepath.Join(filepath.Dir(cm.caFile), caKeyFile)
}

func (cm *Manager) generateCA() error {
	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}

	ca := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().Unix()),
		Subject: pkix.Name{
			Organization: []string{"pscan Passive Scanner CA"},
			CommonName:   "pscan Root CA",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	caBytes, err := x509.CreateCertificate(rand.Reader, ca, ca, &caKey.PublicKey, caKey)
	if err != nil {
		return err
	}
	ca, err = x509.ParseCertificate(caBytes)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cm.caFile), 0o755); err != nil {
		return err
	}
	if err := writePEM(cm.caFile, "CERTIFICATE", caBytes, 0o644); err != nil {
		return err
	}
	if err := writePEM(cm.keyPath(), "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(caKey), 0o600); err != nil {
		return err
	}

	cm.ca = ca
	cm.caKey = caKey
	cm.logger.Info("🔐 CA generated", zap.String("file", cm.caFile))

	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer out.Close()

	return pem.Encode(out, &pem.Block{Type: blockType, Bytes: der})
}

func readPEM(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: %w", path, errNoPEM)
	}
	return block.Bytes, nil
}

func (cm *Manager) loadCA() error {
	certDER, err := readPEM(cm.caFile)
	if err != nil {
		return err
	}
	ca, err := x509.ParseCertificate(certDER)
	if err != nil {
		return err
	}

	keyDER, err := readPEM(cm.keyPath())
	if err != nil {
		return err
	}
	caKey, err := x509.ParsePKCS1PrivateKey(keyDER)
	if err != nil {
		return err
	}

	cm.ca = ca
	cm.caKey = caKey

	return nil
}

// GetCertificate возвращает сертификат для host, выпуская его при первом обращении
func (cm *Manager) GetCertificate(host string) (*tls.Certificate, error) {
	cm.mu.RLock()
	if cert, ok := cm.certs[host]; ok {
		cm.mu.RUnlock()
		return cert, nil
	}
	cm.mu.RUnlock()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cert, ok := cm.certs[host]; ok {
		return cert, nil
	}

	certKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"pscan Passive Scanner"},
			CommonName:   host,
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().AddDate(1, 0, 0),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{host}
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, cm.ca, &certKey.PublicKey, cm.caKey)
	if err != nil {
		return nil, err
	}

	cert := &tls.Certificate{
		Certificate: [][]byte{certBytes, cm.ca.Raw},
		PrivateKey:  certKey,
	}

	cm.certs[host] = cert

	return cert, nil
}

// CertPool пул с CA прокси, нужен клиентам, которые ходят через прокси (и тестам)
func (cm *Manager) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(cm.ca)
	return pool
}

func (cm *Manager) GetCAPath() string {
	return cm.caFile
}
