package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/projecteru2/core/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/projecteru2/shuttle/config"
	"github.com/projecteru2/shuttle/remote"
)

// compile-time interface check.
var _ remote.Executor = (*Executor)(nil)

// Executor runs commands on remote hosts over SSH. One connection per host is
// kept for the lifetime of the Executor; every command gets its own session.
type Executor struct {
	conf   config.SSHConfig
	client *ssh.ClientConfig

	mu    sync.Mutex
	conns map[string]*ssh.Client
	agent net.Conn
}

// New builds an Executor from the SSH section of the config. Authentication
// uses the agent (when enabled and reachable) followed by every readable
// identity file.
func New(ctx context.Context, conf config.SSHConfig) (*Executor, error) {
	e := &Executor{conf: conf, conns: map[string]*ssh.Client{}}

	auth, err := e.authMethods(ctx)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	hostKey, err := hostKeyCallback(conf)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.client = &ssh.ClientConfig{
		User:            conf.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         conf.DialTimeout,
	}
	return e, nil
}

func (e *Executor) Run(ctx context.Context, host string, cmd remote.Command) (string, error) {
	var stdout bytes.Buffer
	if err := e.Stream(ctx, host, cmd, nil, &stdout); err != nil {
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (e *Executor) Stream(ctx context.Context, host string, cmd remote.Command, stdin io.Reader, stdout io.Writer) error {
	line := cmd.String()
	fail := func(status int, stderr string, err error) error {
		return &remote.ExecError{Host: host, Command: line, ExitStatus: status, Stderr: remote.TailStderr(stderr), Err: err}
	}

	conn, err := e.dial(host)
	if err != nil {
		return fail(-1, "", err)
	}
	session, err := conn.NewSession()
	if err != nil {
		// A dead cached connection is dropped so the next command redials.
		e.forget(host, conn)
		return fail(-1, "", fmt.Errorf("open session: %w", err))
	}
	defer session.Close() //nolint:errcheck

	var stderr bytes.Buffer
	session.Stdin = stdin
	session.Stdout = stdout
	session.Stderr = &stderr

	if err := runSession(ctx, session, line); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return fail(exitErr.ExitStatus(), stderr.String(), err)
		}
		return fail(-1, stderr.String(), err)
	}
	return nil
}

// Close closes every cached connection and the agent socket.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for host, c := range e.conns {
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("close %s: %w", host, err))
		}
		delete(e.conns, host)
	}
	if e.agent != nil {
		_ = e.agent.Close()
		e.agent = nil
	}
	return errors.Join(errs...)
}

// runSession runs line and kills the remote process if ctx ends first.
// On cancellation it does not wait for Run to return: a blocked stdin copy
// would keep it from ever returning.
func runSession(ctx context.Context, session *ssh.Session, line string) error {
	done := make(chan error, 1)
	go func() { done <- session.Run(line) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return ctx.Err()
	}
}

func (e *Executor) dial(host string) (*ssh.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.conns[host]; ok {
		return c, nil
	}
	addr := net.JoinHostPort(host, strconv.Itoa(e.conf.Port))
	c, err := ssh.Dial("tcp", addr, e.client)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	e.conns[host] = c
	return c, nil
}

func (e *Executor) forget(host string, c *ssh.Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conns[host] == c {
		delete(e.conns, host)
		_ = c.Close()
	}
}

func (e *Executor) authMethods(ctx context.Context) ([]ssh.AuthMethod, error) {
	logger := log.WithFunc("ssh.authMethods")
	var methods []ssh.AuthMethod

	if sock := os.Getenv("SSH_AUTH_SOCK"); e.conf.UseAgent && sock != "" {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			logger.Warnf(ctx, "ssh agent %s unreachable: %v", sock, err)
		} else {
			e.agent = conn
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	var signers []ssh.Signer
	for _, path := range e.conf.IdentityFiles {
		signer, err := loadIdentity(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warnf(ctx, "skip identity %s: %v", path, err)
			}
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("no ssh credentials: agent unavailable and no usable identity file")
	}
	return methods, nil
}

func loadIdentity(path string) (ssh.Signer, error) {
	key, err := os.ReadFile(path) //nolint:gosec // identity path from config
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return signer, nil
}

func hostKeyCallback(conf config.SSHConfig) (ssh.HostKeyCallback, error) {
	if conf.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicitly requested by the operator
	}
	if conf.KnownHosts == "" {
		return nil, fmt.Errorf("known_hosts not configured and host key checking enabled")
	}
	cb, err := knownhosts.New(conf.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %s: %w", conf.KnownHosts, err)
	}
	return cb, nil
}
