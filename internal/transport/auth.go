package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/google/go-containerregistry/pkg/authn"
	sshagent "github.com/xanzy/ssh-agent"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// defaultIdentityFiles are tried, in order, when no identity file is configured.
var defaultIdentityFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// sshAuth collects the SSH authentication methods for an sftp transport.
// The returned closer releases the agent connection, if one was opened.
func sshAuth(cfg SFTPConfig, log *zap.Logger) ([]ssh.AuthMethod, io.Closer, error) {
	var (
		methods []ssh.AuthMethod
		closer  io.Closer = nopCloser{}
	)

	if sshagent.Available() {
		agent, conn, err := sshagent.New()
		if err != nil {
			log.Debug("ssh agent unavailable", zap.Error(err))
		} else {
			methods = append(methods, ssh.PublicKeysCallback(agent.Signers))
			if conn != nil {
				closer = conn
			}
		}
	}

	signers, err := identitySigners(cfg.IdentityFile, log)
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if cfg.Password != "" {
		methods = append(methods, ssh.Password(cfg.Password))
	}

	if len(methods) == 0 {
		closer.Close()
		return nil, nil, errors.New("no ssh authentication method available: set git-bigfile.sftp.identityfile or git-bigfile.sftp.password, or run an ssh agent")
	}
	return methods, closer, nil
}

// identitySigners loads the configured key, or the default keys from ~/.ssh.
// A configured key must be readable; default keys are skipped when absent or
// protected by a passphrase.
func identitySigners(configured string, log *zap.Logger) ([]ssh.Signer, error) {
	if configured != "" {
		data, err := os.ReadFile(expandHome(configured))
		if err != nil {
			return nil, fmt.Errorf("read identity file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parse identity file %s: %w", configured, err)
		}
		return []ssh.Signer{signer}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil
	}
	var signers []ssh.Signer
	for _, name := range defaultIdentityFiles {
		path := filepath.Join(home, ".ssh", name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			log.Debug("skipping identity file", zap.String("path", path), zap.Error(err))
			continue
		}
		signers = append(signers, signer)
	}
	return signers, nil
}

// hostKeyCallback verifies server keys against known_hosts. Hosts missing
// from the file are accepted with a warning; hosts whose key changed are
// rejected.
func hostKeyCallback(cfg SFTPConfig, log *zap.Logger) (ssh.HostKeyCallback, error) {
	path := cfg.KnownHosts
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, ".ssh", "known_hosts")
		}
	}
	path = expandHome(path)

	var known ssh.HostKeyCallback
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			cb, err := knownhosts.New(path)
			if err != nil {
				return nil, fmt.Errorf("load known hosts %s: %w", path, err)
			}
			known = cb
		}
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if known != nil {
			err := known(hostname, remote, key)
			var keyErr *knownhosts.KeyError
			if err == nil || !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
				return err
			}
		}
		log.Warn("accepting unknown host key",
			zap.String("host", hostname),
			zap.String("fingerprint", ssh.FingerprintSHA256(key)))
		return nil
	}, nil
}

// registryAuth returns explicit credentials when configured, else the docker
// keychain.
func registryAuth(cfg OCIConfig) authn.Keychain {
	if cfg.Username != "" {
		return staticKeychain{auth: &authn.Basic{Username: cfg.Username, Password: cfg.Password}}
	}
	return authn.DefaultKeychain
}

type staticKeychain struct {
	auth authn.Authenticator
}

func (k staticKeychain) Resolve(authn.Resource) (authn.Authenticator, error) {
	return k.auth, nil
}

func expandHome(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
