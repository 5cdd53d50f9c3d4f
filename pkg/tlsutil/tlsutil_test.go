package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/datahub/errors"
)

// selfSigned returns a throwaway P-256 client certificate for localhost
func selfSigned(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: "localhost", Organization: []string{"datahub test"}},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
}

func setupTestFiles(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	dir := t.TempDir()
	certPEM, keyPEM := selfSigned(t)

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	caFile = filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return certFile, keyFile, caFile
}

func TestLoadClientTLSConfig(t *testing.T) {
	certFile, keyFile, caFile := setupTestFiles(t)
	badPEM := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(badPEM, []byte("not a certificate"), 0o644))

	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr bool
		checkFn func(*testing.T, *tls.Config)
	}{
		{
			name: "defaults",
			cfg:  ClientConfig{},
			checkFn: func(t *testing.T, c *tls.Config) {
				assert.NotNil(t, c.RootCAs)
				assert.Equal(t, uint16(tls.VersionTLS12), c.MinVersion)
				assert.False(t, c.InsecureSkipVerify)
				assert.Empty(t, c.Certificates)
			},
		},
		{
			name: "additional CA and TLS 1.3",
			cfg:  ClientConfig{CAFiles: []string{caFile}, MinVersion: "1.3"},
			checkFn: func(t *testing.T, c *tls.Config) {
				assert.NotNil(t, c.RootCAs)
				assert.Equal(t, uint16(tls.VersionTLS13), c.MinVersion)
			},
		},
		{
			name: "insecure skip verify",
			cfg:  ClientConfig{InsecureSkipVerify: true},
			checkFn: func(t *testing.T, c *tls.Config) {
				assert.True(t, c.InsecureSkipVerify)
			},
		},
		{
			name: "client certificate",
			cfg:  ClientConfig{CertFile: certFile, KeyFile: keyFile},
			checkFn: func(t *testing.T, c *tls.Config) {
				assert.Len(t, c.Certificates, 1)
			},
		},
		{name: "missing CA file", cfg: ClientConfig{CAFiles: []string{"/nonexistent/ca.pem"}}, wantErr: true},
		{name: "invalid CA PEM", cfg: ClientConfig{CAFiles: []string{badPEM}}, wantErr: true},
		{name: "cert without key", cfg: ClientConfig{CertFile: certFile}, wantErr: true},
		{name: "missing key file", cfg: ClientConfig{CertFile: certFile, KeyFile: "/nonexistent/key.pem"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadClientTLSConfig(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, got)
				assert.False(t, errors.IsTransient(err))
				return
			}
			require.NoError(t, err)
			tt.checkFn(t, got)
		})
	}
}

func TestHTTPClient_SelfSignedServer(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	strict, err := LoadClientTLSConfig(ClientConfig{})
	require.NoError(t, err)
	_, err = HTTPClient(strict, 5*time.Second).Get(server.URL)
	require.Error(t, err, "self-signed certificate must be rejected by default")

	insecure, err := LoadClientTLSConfig(ClientConfig{InsecureSkipVerify: true})
	require.NoError(t, err)
	client := HTTPClient(insecure, 5*time.Second)
	assert.Equal(t, 5*time.Second, client.Timeout)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
