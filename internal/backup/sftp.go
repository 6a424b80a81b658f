package backup

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/celenkdiyari/storefront/config"
)

// SftpUploader copies archives to a remote directory over SSH
type SftpUploader struct {
	cfg config.SftpConfig
}

// NewSftpUploader returns nil when the target is disabled
func NewSftpUploader(cfg config.SftpConfig) *SftpUploader {
	if !cfg.Enabled || cfg.Host == "" {
		return nil
	}
	return &SftpUploader{cfg: cfg}
}

func (u *SftpUploader) clientConfig() (*ssh.ClientConfig, error) {
	hostKey := ssh.InsecureIgnoreHostKey()
	if u.cfg.HostKey != "" {
		pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(u.cfg.HostKey))
		if err != nil {
			return nil, errors.Wrap(err, "parse sftp host key")
		}
		hostKey = ssh.FixedHostKey(pk)
	} else {
		zap.L().Warn("sftp host key not configured, skipping verification", zap.String("namespace", "backup"))
	}
	return &ssh.ClientConfig{
		User:            u.cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(u.cfg.Password)},
		HostKeyCallback: hostKey,
		Timeout:         15 * time.Second,
	}, nil
}

func (u *SftpUploader) Upload(ctx context.Context, localPath string) error {
	cc, err := u.clientConfig()
	if err != nil {
		return err
	}
	port := u.cfg.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(u.cfg.Host, strconv.Itoa(port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrap(err, "dial sftp")
	}
	sc, chans, reqs, err := ssh.NewClientConn(conn, addr, cc)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "ssh handshake")
	}
	sshClient := ssh.NewClient(sc, chans, reqs)
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return errors.Wrap(err, "open sftp session")
	}
	defer client.Close()

	dir := u.cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := client.MkdirAll(dir); err != nil {
		return errors.Wrap(err, "create remote dir")
	}

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := client.Create(path.Join(dir, filepath.Base(localPath)))
	if err != nil {
		return errors.Wrap(err, "create remote file")
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return errors.Wrap(err, "upload archive")
	}
	return dst.Close()
}
