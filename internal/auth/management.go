// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/interface-translator/pkg/core"
)

const (
	TranslationManagerName  = "TranslationManager"
	BridgeManagementService = "interfaceBridgeManagement"
	targetTypeServiceDef    = "SERVICE_DEF"

	tokenDelimiter = "|"
	tokenParts     = 7
)

var errBadToken = errors.New("malformed token")

// ManagementAuthorizer guards the bridge management API. Only the
// translation manager may negotiate or abort bridges; it proves itself
// with its client certificate or with a self-contained token issued for
// this system.
type ManagementAuthorizer struct {
	policy     string
	enabled    bool
	systemName string
	block      cipher.Block
	iv         []byte
	now        func() time.Time
	opts       options
	logger     *slog.Logger
}

// NewManagementAuthorizer validates the token cipher settings. Tokens are
// taken as plain base64url content when no initialization vector is set.
func NewManagementAuthorizer(sec config.SecurityConfig, systemName string, logger *slog.Logger, opts ...Option) (*ManagementAuthorizer, error) {
	a := &ManagementAuthorizer{
		policy:     sec.AuthenticationPolicy,
		enabled:    sec.AuthorizationEnabled,
		systemName: systemName,
		now:        time.Now,
		opts:       buildOptions(opts),
		logger:     logger,
	}
	if sec.TokenIV == "" {
		return a, nil
	}
	iv, err := base64.StdEncoding.DecodeString(sec.TokenIV)
	if err != nil || len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("token initialization vector must be %d base64 encoded bytes", aes.BlockSize)
	}
	block, err := aes.NewCipher([]byte(sec.TokenEncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("token encryption key: %w", err)
	}
	a.iv = iv
	a.block = block
	return a, nil
}

// Authorize checks the peer certificate chain or the Authorization header
// value, depending on the authentication policy.
func (a *ManagementAuthorizer) Authorize(peer []*x509.Certificate, authorization string) error {
	var err error
	switch {
	case a.policy == config.PolicyCertificate:
		err = a.checkCertificate(peer)
	case a.enabled:
		err = a.checkToken(authorization)
	}
	if err != nil {
		a.opts.failed(BoundaryManagement)
		a.logger.Warn("management call rejected", "error", err)
	}
	return err
}

func (a *ManagementAuthorizer) checkCertificate(peer []*x509.Certificate) error {
	if len(peer) == 0 {
		return fmt.Errorf("%w: Unauthenticated access attempt", core.ErrAuth)
	}
	cn := peer[0].Subject.CommonName
	client, _, _ := strings.Cut(cn, ".")
	if !strings.EqualFold(strings.TrimSpace(client), TranslationManagerName) {
		return denied()
	}
	return nil
}

func (a *ManagementAuthorizer) checkToken(header string) error {
	if strings.TrimSpace(header) == "" {
		return fmt.Errorf("%w: No authorization header has been provided", core.ErrAuth)
	}
	token, ok := core.BearerToken(header)
	if !ok {
		return fmt.Errorf("%w: Invalid authorization header", core.ErrAuth)
	}
	fields, err := a.tokenFields(token)
	if err != nil {
		a.logger.Debug("management token unreadable", "error", err)
		return fmt.Errorf("%w: Invalid authorization header", core.ErrAuth)
	}

	if expiry := strings.TrimSpace(fields[6]); expiry != "" {
		at, err := time.Parse(time.RFC3339, expiry)
		if err != nil {
			return fmt.Errorf("%w: Invalid authorization header", core.ErrAuth)
		}
		if at.Before(a.now()) {
			return denied()
		}
	}

	if !strings.EqualFold(strings.TrimSpace(fields[1]), TranslationManagerName) ||
		!strings.EqualFold(strings.TrimSpace(fields[2]), a.systemName) ||
		!strings.EqualFold(strings.TrimSpace(fields[3]), BridgeManagementService) ||
		strings.ToUpper(strings.TrimSpace(fields[5])) != targetTypeServiceDef {
		return denied()
	}
	return nil
}

// tokenFields decrypts (when configured) and splits a self-contained
// token: <kind>|<consumer>|<provider>|<target>|<scope>|<targetType>|<expiry>.
func (a *ManagementAuthorizer) tokenFields(token string) ([]string, error) {
	raw := token
	if a.block != nil {
		plain, err := a.decrypt(token)
		if err != nil {
			return nil, err
		}
		raw = plain
	}
	content, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(raw), "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadToken, err)
	}
	fields := strings.Split(strings.TrimSpace(string(content)), tokenDelimiter)
	if len(fields) < tokenParts {
		return nil, fmt.Errorf("%w: %d fields", errBadToken, len(fields))
	}
	return fields, nil
}

// decrypt reverses AES-CBC with PKCS#5 padding over a base64 ciphertext.
func (a *ManagementAuthorizer) decrypt(data string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadToken, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not a whole number of blocks", errBadToken)
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(a.block, a.iv).CryptBlocks(plain, ciphertext)

	pad := int(plain[len(plain)-1])
	if pad == 0 || pad > aes.BlockSize {
		return "", fmt.Errorf("%w: bad padding", errBadToken)
	}
	for _, b := range plain[len(plain)-pad:] {
		if int(b) != pad {
			return "", fmt.Errorf("%w: bad padding", errBadToken)
		}
	}
	return string(plain[:len(plain)-pad]), nil
}

func denied() error {
	return fmt.Errorf("%w: Requester has no management permission", core.ErrForbidden)
}
