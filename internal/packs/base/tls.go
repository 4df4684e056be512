package base

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/pingsantohq/subpub/internal/config"
)

// clientTLSConfig builds the TLS settings for the http schema. ca_file adds
// a private CA bundle; cert_file and key_file present a client certificate.
func clientTLSConfig(opts config.Options, verify bool) (*tls.Config, error) {
	caPath, err := opts.String("ca_file", "")
	if err != nil {
		return nil, err
	}
	certPath, err := opts.String("cert_file", "")
	if err != nil {
		return nil, err
	}
	keyPath, err := opts.String("key_file", "")
	if err != nil {
		return nil, err
	}
	if (certPath == "") != (keyPath == "") {
		return nil, fmt.Errorf("cert_file and key_file must be provided together")
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !verify, //nolint:gosec // opt-in via verify: false
	}

	if caPath != "" {
		if caPath, err = config.ExpandPath(caPath); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("invalid CA bundle")
		}
		tlsConfig.RootCAs = roots
	}

	if certPath != "" {
		if certPath, err = config.ExpandPath(certPath); err != nil {
			return nil, err
		}
		if keyPath, err = config.ExpandPath(keyPath); err != nil {
			return nil, err
		}
		certificate, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{certificate}
	}
	return tlsConfig, nil
}
