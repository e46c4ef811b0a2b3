package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// ClientTLSConfig authenticates with clientCert/clientKey and trusts only
// peers whose certificate chains to serverCert. Host names are not checked,
// the bridge is usually pointed at a bare address.
func ClientTLSConfig(clientCert, clientKey, serverCert []byte) (*tls.Config, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(serverCert) {
		return nil, fmt.Errorf("failed to parse server certificate")
	}

	cfg := &tls.Config{
		RootCAs:            pool,
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) == 0 {
				return fmt.Errorf("peer presented no certificate")
			}
			opts := x509.VerifyOptions{
				Roots: pool,
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			if err != nil {
				slog.Debug("failed to verify peer cert", "error", err)
				return err
			}
			return nil
		},
	}

	if len(clientCert) > 0 || len(clientKey) > 0 {
		keyPair, err := tls.X509KeyPair(clientCert, clientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{keyPair}
	}

	return cfg, nil
}

// LoadClientTLSConfig is ClientTLSConfig over PEM files. An empty caFile
// means plain system roots.
func LoadClientTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	if caFile == "" {
		return nil, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read ca cert: %w", err)
	}
	var cert, key []byte
	if certFile != "" {
		if cert, err = os.ReadFile(certFile); err != nil {
			return nil, fmt.Errorf("failed to read client cert: %w", err)
		}
		if key, err = os.ReadFile(keyFile); err != nil {
			return nil, fmt.Errorf("failed to read client key: %w", err)
		}
	}
	return ClientTLSConfig(cert, key, ca)
}
