package hooks

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"os"
	"time"

	"github.com/redhat-data-and-ai/hookbot/internal/config"
	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
)

// newHTTPClient builds the client used to talk to GitLab. Self-hosted
// instances often need a private CA or, in test setups, no verification.
func newHTTPClient(cfg config.GitLabConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureTLS, //nolint:gosec // opt-in via gitlab.insecure_tls
	}

	if cfg.CACertPath != "" {
		pem, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, apperrors.NewErrorWithCause(apperrors.ErrConfigurationError,
				"Failed to read GitLab CA certificate", err).
				WithContext("ca_cert_path", cfg.CACertPath)
		}

		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, apperrors.NewError(apperrors.ErrConfigurationError,
				"GitLab CA certificate contains no PEM certificates").
				WithContext("ca_cert_path", cfg.CACertPath)
		}
		tlsConfig.RootCAs = pool
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig

	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}, nil
}
