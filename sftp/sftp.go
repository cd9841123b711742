package sftp

import (
	"fmt"
	"io"
	"path"
	"time"

	"github.com/pkg/sftp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

// Config describes an SFTP server reached with private key authentication.
type Config struct {
	Username   string
	PrivateKey string
	// HostKey is the server key in authorized_keys format. Empty skips verification.
	HostKey string
	Server  string
	Timeout time.Duration
}

type Client struct {
	config     Config
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

func hostKeyCallback(hostKey string) (ssh.HostKeyCallback, error) {
	if hostKey == "" {
		log.Warn("sftp: host_key not configured, server key is not verified")
		return ssh.InsecureIgnoreHostKey(), nil
	}

	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(hostKey))
	if err != nil {
		return nil, fmt.Errorf("sftp: invalid host key: %w", err)
	}

	return ssh.FixedHostKey(key), nil
}

// New connects to the server. Close must be called when done.
func New(config Config) (*Client, error) {
	signer, err := ssh.ParsePrivateKey([]byte(config.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("sftp: invalid private key: %w", err)
	}

	callback, err := hostKeyCallback(config.HostKey)
	if err != nil {
		return nil, err
	}

	sshClient, err := ssh.Dial("tcp", config.Server, &ssh.ClientConfig{
		User:            config.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: callback,
		Timeout:         config.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("sftp: dial %s: %w", config.Server, err)
	}

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("sftp: new client: %w", err)
	}

	return &Client{config: config, sshClient: sshClient, sftpClient: sftpClient}, nil
}

// NewFromSFTP wraps an already open session.
func NewFromSFTP(client *sftp.Client) *Client {
	return &Client{sftpClient: client}
}

// Download opens a remote file for reading.
func (c *Client) Download(remoteFile string) (io.ReadCloser, error) {
	return c.sftpClient.Open(remoteFile)
}

// Upload writes source to remoteFile, creating the parent directories.
func (c *Client) Upload(source io.Reader, remoteFile string) error {
	if err := c.sftpClient.MkdirAll(path.Dir(remoteFile)); err != nil {
		return fmt.Errorf("sftp: mkdir %s: %w", path.Dir(remoteFile), err)
	}

	dst, err := c.sftpClient.Create(remoteFile)
	if err != nil {
		return fmt.Errorf("sftp: create %s: %w", remoteFile, err)
	}

	if _, err = io.Copy(dst, source); err != nil {
		dst.Close()
		return fmt.Errorf("sftp: write %s: %w", remoteFile, err)
	}

	return dst.Close()
}

func (c *Client) Close() {
	if c.sftpClient != nil {
		c.sftpClient.Close()
	}
	if c.sshClient != nil {
		c.sshClient.Close()
	}
}
