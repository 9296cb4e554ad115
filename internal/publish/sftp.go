package publish

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/alanbriolat/connect-archiver/internal/config"
)

// SFTP uploads recordings into a directory on a remote host.
type SFTP struct {
	config config.SFTP
	addr   string
	ssh    *ssh.ClientConfig
	// dial opens an SFTP client; the returned closer releases everything it opened.
	dial func(ctx context.Context) (*sftp.Client, io.Closer, error)
	log  *zap.SugaredLogger
}

func NewSFTP(cfg config.SFTP, logger *zap.Logger) (*SFTP, error) {
	var auths []ssh.AuthMethod
	if cfg.PrivateKey != "" {
		signer, err := loadSigner(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		auths = append(auths, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auths = append(auths, ssh.Password(cfg.Password))
	}
	if len(auths) == 0 {
		return nil, fmt.Errorf("no auth method provided; set password or private_key")
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	p := &SFTP{
		config: cfg,
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		ssh: &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            auths,
			HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
			Timeout:         10 * time.Second,
		},
		log: logger.Named("sftp").Sugar(),
	}
	p.dial = p.dialSSH
	return p, nil
}

// loadSigner reads a private key from a file, or failing that treats the value as a base64 or raw PEM key.
func loadSigner(value string) (ssh.Signer, error) {
	keyBytes, err := os.ReadFile(value)
	if err != nil {
		if keyBytes, err = base64.StdEncoding.DecodeString(value); err != nil {
			keyBytes = []byte(value)
		}
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return signer, nil
}

func (p *SFTP) Name() string {
	return KindSFTP
}

// RemotePath is where localPath is uploaded to.
func (p *SFTP) RemotePath(localPath string) string {
	return path.Join(p.config.RemoteDir, filepath.Base(localPath))
}

func (p *SFTP) Publish(ctx context.Context, localPath string) (string, error) {
	client, closer, err := p.dial(ctx)
	if err != nil {
		return "", err
	}
	defer closer.Close()

	remotePath := p.RemotePath(localPath)
	if err := upload(client, localPath, remotePath); err != nil {
		return "", err
	}
	p.log.Infof("Successfully uploaded '%s' to %s", remotePath, p.addr)
	return fmt.Sprintf("sftp://%s@%s/%s", p.config.User, p.addr, strings.TrimPrefix(remotePath, "/")), nil
}

func (p *SFTP) dialSSH(ctx context.Context) (*sftp.Client, io.Closer, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial tcp %s: %w", p.addr, err)
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, p.addr, p.ssh)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("ssh handshake with %s: %w", p.addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, nil, fmt.Errorf("create sftp client: %w", err)
	}
	return sftpClient, closers{sftpClient, sshClient}, nil
}

func upload(client *sftp.Client, localPath string, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dir := path.Dir(remotePath)
	if err := mkdirAllSFTP(client, dir); err != nil {
		return fmt.Errorf("ensure remote dir %s: %w", dir, err)
	}
	f, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return fmt.Errorf("copy to remote file %s: %w", remotePath, err)
	}
	return f.Close()
}

// mkdirAllSFTP mimics os.MkdirAll for an SFTP server by creating each segment of the path.
func mkdirAllSFTP(client *sftp.Client, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}
	parts := strings.Split(dir, "/")
	cur := ""
	if strings.HasPrefix(dir, "/") {
		cur = "/"
	}
	for _, p := range parts {
		if p == "" {
			continue
		}
		cur = path.Join(cur, p)
		if _, err := client.Stat(cur); err != nil {
			if os.IsNotExist(err) {
				if err := client.Mkdir(cur); err != nil {
					return fmt.Errorf("mkdir %s: %w", cur, err)
				}
			} else {
				return fmt.Errorf("stat %s: %w", cur, err)
			}
		}
	}
	return nil
}

type closers []io.Closer

func (c closers) Close() error {
	var result error
	for _, closer := range c {
		if err := closer.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
