package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPConfig holds the connection settings for the blog host.
type SFTPConfig struct {
	Host           string        `yaml:"host" json:"host" env:"SFTP_HOST"`
	Port           int           `yaml:"port" json:"port" env:"SFTP_PORT"`
	Username       string        `yaml:"username" json:"username" env:"SFTP_USERNAME"`
	Password       string        `yaml:"password" json:"-" env:"SFTP_PASSWORD"`
	KnownHostsFile string        `yaml:"known_hosts" json:"known_hosts" env:"SFTP_KNOWN_HOSTS"`
	RemoteDir      string        `yaml:"remote_dir" json:"remote_dir" env:"SFTP_REMOTE_DIR"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
}

// Addr returns host:port.
func (c SFTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type dialFunc func(ctx context.Context) (*sftp.Client, io.Closer, error)

// SFTPUploader opens one SSH connection per Upload call and closes it afterwards.
type SFTPUploader struct {
	cfg    SFTPConfig
	dial   dialFunc
	logger *slog.Logger
}

// NewSFTPUploader validates cfg and returns an uploader.
func NewSFTPUploader(cfg SFTPConfig) (*SFTPUploader, error) {
	if cfg.Host == "" || cfg.Username == "" {
		return nil, fmt.Errorf("%w: host and username are required", ErrMissingCredentials)
	}
	if cfg.Password == "" {
		return nil, fmt.Errorf("%w: SFTP password not provided", ErrMissingCredentials)
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RemoteDir == "" {
		cfg.RemoteDir = "."
	}
	u := &SFTPUploader{cfg: cfg, logger: slog.Default()}
	u.dial = u.dialSSH
	return u, nil
}

func (u *SFTPUploader) Target() string {
	return "sftp://" + u.cfg.Addr() + path.Clean("/"+u.cfg.RemoteDir)
}

// Upload creates the remote directory tree as needed and writes each file,
// truncating anything already at that path.
func (u *SFTPUploader) Upload(ctx context.Context, files []File) ([]string, error) {
	u.logger.Info("connecting to SFTP server", "addr", u.cfg.Addr(), "user", u.cfg.Username)
	client, conn, err := u.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	defer client.Close()

	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		name, err := cleanName(f.Name)
		if err != nil {
			return written, err
		}
		remote := path.Join(u.cfg.RemoteDir, name)
		if err := writeRemote(client, remote, f.Data); err != nil {
			return written, err
		}
		u.logger.Info("uploaded file", "path", remote, "bytes", len(f.Data))
		written = append(written, remote)
	}
	return written, nil
}

func writeRemote(client *sftp.Client, remote string, data []byte) error {
	if err := client.MkdirAll(path.Dir(remote)); err != nil {
		return fmt.Errorf("create remote dir %s: %w", path.Dir(remote), err)
	}
	fh, err := client.OpenFile(remote, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("open remote file %s: %w", remote, err)
	}
	if _, err := fh.Write(data); err != nil {
		fh.Close()
		return fmt.Errorf("write remote file %s: %w", remote, err)
	}
	if err := fh.Close(); err != nil {
		return fmt.Errorf("close remote file %s: %w", remote, err)
	}
	return nil
}

func (u *SFTPUploader) dialSSH(ctx context.Context) (*sftp.Client, io.Closer, error) {
	hostKey, err := u.hostKeyCallback()
	if err != nil {
		return nil, nil, err
	}

	password := u.cfg.Password
	sshCfg := &ssh.ClientConfig{
		User: u.cfg.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			// Shared hosts often only offer keyboard-interactive for password logins.
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKey,
		Timeout:         u.cfg.Timeout,
	}

	dialer := net.Dialer{Timeout: u.cfg.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", u.cfg.Addr())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		netConn.SetDeadline(deadline)
	}

	c, chans, reqs, err := ssh.NewClientConn(netConn, u.cfg.Addr(), sshCfg)
	if err != nil {
		netConn.Close()
		return nil, nil, classifyHandshake(err)
	}
	sshClient := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, nil, fmt.Errorf("start sftp subsystem: %w", err)
	}
	return client, sshClient, nil
}

func (u *SFTPUploader) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if u.cfg.KnownHostsFile == "" {
		u.logger.Warn("SFTP host key is not verified; set SFTP_KNOWN_HOSTS to pin it", "host", u.cfg.Host)
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(u.cfg.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("load known hosts %s: %w", u.cfg.KnownHostsFile, err)
	}
	return cb, nil
}

func classifyHandshake(err error) error {
	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		return fmt.Errorf("verify host key: %w", err)
	}
	if strings.Contains(err.Error(), "unable to authenticate") {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	return fmt.Errorf("%w: ssh handshake: %v", ErrUnreachable, err)
}
