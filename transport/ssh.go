package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

type SSHOptions struct {
	IdentityFile string
	Password     string
	// KnownHosts is a known_hosts file. Empty accepts any host key, which
	// is what a tablet on the USB network usually needs.
	KnownHosts string
	// Prompt asks for a password on the terminal when other methods fail.
	Prompt bool
}

type sshStream struct {
	client  *ssh.Client
	session *ssh.Session
	stdout  io.Reader
	agent   net.Conn
}

// DialSSH runs cat on devicePath on the tablet and streams its output.
func DialSSH(ctx context.Context, address, devicePath string, opts SSHOptions) (io.ReadCloser, error) {
	user, host := splitUserHost(address)

	hostKey, err := hostKeyCallback(opts.KnownHosts)
	if err != nil {
		return nil, err
	}

	auth, agentConn := authMethods(opts)
	closeAgent := func() {
		if agentConn != nil {
			agentConn.Close()
		}
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         ConnectTimeout,
	}

	dialer := &net.Dialer{Timeout: ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		closeAgent()
		return nil, fmt.Errorf("failed to dial %s: %w", host, err)
	}

	client, err := handshake(ctx, conn, host, cfg)
	if err != nil {
		conn.Close()
		closeAgent()
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		closeAgent()
		return nil, fmt.Errorf("failed to open ssh session: %w", err)
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		closeAgent()
		return nil, fmt.Errorf("failed to pipe stdout: %w", err)
	}

	cmd := "cat " + devicePath
	if err := session.Start(cmd); err != nil {
		session.Close()
		client.Close()
		closeAgent()
		return nil, fmt.Errorf("failed to start %q: %w", cmd, err)
	}

	slog.Info("streaming over ssh", "host", host, "user", user, "device", devicePath)
	return &sshStream{client: client, session: session, stdout: stdout, agent: agentConn}, nil
}

// handshake bounds the ssh handshake by ConnectTimeout and ctx. The
// deadline is cleared once the client is up.
func handshake(ctx context.Context, conn net.Conn, host string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	if err := conn.SetDeadline(time.Now().Add(ConnectTimeout)); err != nil {
		return nil, fmt.Errorf("failed to set handshake deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	c, chans, reqs, err := ssh.NewClientConn(conn, host, cfg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, fmt.Errorf("failed to establish ssh connection: %w", err)
	}
	if !stop() {
		c.Close()
		return nil, fmt.Errorf("failed to establish ssh connection: %w", ctx.Err())
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to clear handshake deadline: %w", err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func (s *sshStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *sshStream) Close() error {
	s.session.Close()
	if s.agent != nil {
		s.agent.Close()
	}
	return s.client.Close()
}

func splitUserHost(address string) (string, string) {
	user := "root"
	host := address
	if i := strings.LastIndex(address, "@"); i >= 0 {
		user, host = address[:i], address[i+1:]
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "22")
	}
	return user, host
}

func hostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		slog.Warn("host key verification disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(expandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}
	return cb, nil
}

// authMethods also returns the agent connection, if one was opened. It must
// outlive the handshake and be closed with the stream.
func authMethods(opts SSHOptions) ([]ssh.AuthMethod, net.Conn) {
	var methods []ssh.AuthMethod
	var agentConn net.Conn

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			agentConn = conn
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		} else {
			slog.Debug("failed to reach ssh agent", "error", err)
		}
	}

	if opts.IdentityFile != "" {
		if signer, err := loadSigner(expandHome(opts.IdentityFile)); err == nil {
			methods = append(methods, ssh.PublicKeys(signer))
		} else {
			slog.Warn("failed to load identity file", "path", opts.IdentityFile, "error", err)
		}
	}

	if opts.Password != "" {
		methods = append(methods, ssh.Password(opts.Password))
	}

	if opts.Prompt && term.IsTerminal(int(os.Stdin.Fd())) {
		methods = append(methods, ssh.PasswordCallback(promptPassword))
	}

	return methods, agentConn
}

func loadSigner(path string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(key)
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "ssh password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}
