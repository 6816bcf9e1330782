package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"net"
	"os"
	"path"
	"strconv"
	"sync"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/aweris/bigfile/internal/pointer"
)

const defaultSSHPort = 22

// SFTPConfig holds sftp transport settings.
type SFTPConfig struct {
	Hostname     string
	Username     string
	Path         string
	Port         int
	Password     string
	IdentityFile string
	KnownHosts   string
}

// dialFunc opens an sftp session. The closer releases everything the
// session depends on (ssh connection, agent socket).
type dialFunc func(ctx context.Context) (*sftp.Client, io.Closer, error)

// SFTP stores objects in a directory on a remote host reached over SSH.
//
// The session is opened on first use and reused until Close.
type SFTP struct {
	cfg  SFTPConfig
	log  *zap.Logger
	dial dialFunc

	mu     sync.Mutex
	client *sftp.Client
	closer io.Closer
}

// NewSFTP creates an sftp transport. No connection is made until the first
// operation.
func NewSFTP(cfg SFTPConfig, log *zap.Logger) *SFTP {
	t := &SFTP{cfg: cfg, log: log}
	t.dial = t.dialSSH
	return t
}

func (t *SFTP) Kind() Kind { return KindSFTP }

func (t *SFTP) connect(ctx context.Context) (*sftp.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return t.client, nil
	}
	client, closer, err := t.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", t.cfg.Hostname, err)
	}
	t.client, t.closer = client, closer
	return client, nil
}

func (t *SFTP) dialSSH(ctx context.Context) (*sftp.Client, io.Closer, error) {
	port := t.cfg.Port
	if port == 0 {
		port = defaultSSHPort
	}
	addr := net.JoinHostPort(t.cfg.Hostname, strconv.Itoa(port))

	hostKeys, err := hostKeyCallback(t.cfg, t.log)
	if err != nil {
		return nil, nil, err
	}
	methods, agentConn, err := sshAuth(t.cfg, t.log)
	if err != nil {
		return nil, nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		agentConn.Close()
		return nil, nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            t.cfg.Username,
		Auth:            methods,
		HostKeyCallback: hostKeys,
	})
	if err != nil {
		conn.Close()
		agentConn.Close()
		return nil, nil, err
	}
	sshClient := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		agentConn.Close()
		return nil, nil, fmt.Errorf("open sftp session: %w", err)
	}
	t.log.Debug("sftp session opened", zap.String("addr", addr))
	return client, multiCloser{sshClient, agentConn}, nil
}

func (t *SFTP) remotePath(h pointer.Hash) string {
	return path.Join(t.cfg.Path, string(h))
}

func (t *SFTP) Exists(ctx context.Context, h pointer.Hash) (bool, error) {
	client, err := t.connect(ctx)
	if err != nil {
		return false, err
	}
	info, err := client.Stat(t.remotePath(h))
	if err != nil {
		if isNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", h, err)
	}
	return info.Mode().IsRegular(), nil
}

func (t *SFTP) Get(ctx context.Context, h pointer.Hash, dest string) error {
	client, err := t.connect(ctx)
	if err != nil {
		return err
	}
	src, err := client.Open(t.remotePath(h))
	if err != nil {
		if isNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, h)
		}
		return fmt.Errorf("open %s: %w", h, err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("download %s: %w", h, err)
	}
	return dst.Close()
}

// Put uploads to a temp name and renames it into place. If the rename fails
// because another client already uploaded the object, the upload is done.
func (t *SFTP) Put(ctx context.Context, src string, h pointer.Hash) error {
	client, err := t.connect(ctx)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	target := t.remotePath(h)
	tmp := path.Join(t.cfg.Path, fmt.Sprintf(".%s.%x.tmp", h, rand.Uint64()))

	out, err := client.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", h, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		client.Remove(tmp)
		return fmt.Errorf("upload %s: %w", h, err)
	}
	if err := out.Close(); err != nil {
		client.Remove(tmp)
		return fmt.Errorf("close temp for %s: %w", h, err)
	}

	renameErr := client.PosixRename(tmp, target)
	if renameErr == nil {
		return nil
	}
	if _, err := client.Stat(target); err == nil {
		client.Remove(tmp)
		return nil
	}
	if err := client.Rename(tmp, target); err != nil {
		client.Remove(tmp)
		return fmt.Errorf("rename temp to %s: %w", h, errors.Join(renameErr, err))
	}
	return nil
}

func (t *SFTP) List(ctx context.Context) (map[pointer.Hash]struct{}, error) {
	client, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	infos, err := client.ReadDir(t.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.cfg.Path, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Mode().IsRegular() {
			names = append(names, info.Name())
		}
	}
	return validNames(names), nil
}

// Close ends the session if one was opened. The transport reconnects on the
// next operation.
func (t *SFTP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	if cerr := t.closer.Close(); cerr != nil && err == nil {
		err = cerr
	}
	t.client, t.closer = nil, nil
	return err
}

func isNotExist(err error) bool {
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	var status *sftp.StatusError
	return errors.As(err, &status) && status.FxCode() == sftp.ErrSSHFxNoSuchFile
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
