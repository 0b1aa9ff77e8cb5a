package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// Certificate serials are random 128-bit integers.
var serialMax = new(big.Int).Lsh(big.NewInt(1), 128)

// generateTLSConfig builds a tls.Config around a fresh self-signed
// certificate for the optional TLS chat listener and returns the
// SHA-256 fingerprint clients can pin. hostname becomes the Common Name
// and a DNS SAN next to "localhost"; empty means local development.
func generateTLSConfig(validity time.Duration, hostname string) (*tls.Config, string, error) {
	cert, fingerprint, err := selfSignedCert(validity, hostname)
	if err != nil {
		return nil, "", err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, fingerprint, nil
}

func selfSignedCert(validity time.Duration, hostname string) (tls.Certificate, string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, "", fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, serialMax)
	if err != nil {
		return tls.Certificate{}, "", fmt.Errorf("generate serial: %w", err)
	}

	subject := "parley"
	names := []string{"localhost"}
	if hostname != "" {
		subject = hostname
		if hostname != "localhost" {
			names = append(names, hostname)
		}
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: subject},
		DNSNames:     names,
		// Backdated an hour so a skewed client clock still accepts it.
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, "", fmt.Errorf("create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, "", fmt.Errorf("parse certificate: %w", err)
	}

	sum := sha256.Sum256(der)
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, hex.EncodeToString(sum[:]), nil
}
