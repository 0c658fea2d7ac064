package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/keepmind9/tgembed/internal/logger"
	"github.com/keepmind9/tgembed/pkg/constants"
	"github.com/sirupsen/logrus"
)

// Config configures a TLSTransport
type Config struct {
	// CAFile is an optional PEM bundle that replaces the system roots.
	CAFile string
	// RootCAs, when set, takes precedence over CAFile.
	RootCAs            *x509.CertPool
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
	// ReadDeadline bounds each Read so it behaves as a non-blocking poll.
	ReadDeadline time.Duration
}

var (
	_ Transport    = (*TLSTransport)(nil)
	_ LinkNotifier = (*TLSTransport)(nil)
)

// TLSTransport implements Transport over crypto/tls
type TLSTransport struct {
	mu     sync.Mutex
	cfg    Config
	roots  *x509.CertPool
	conn   net.Conn
	state  State
	events chan LinkEvent
}

// NewTLSTransport creates a disconnected transport
func NewTLSTransport(cfg Config) (*TLSTransport, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = constants.DefaultConnectTimeout
	}
	if cfg.ReadDeadline <= 0 {
		cfg.ReadDeadline = constants.ReadDeadline
	}

	roots := cfg.RootCAs
	if roots == nil && cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		roots = x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA file %s", cfg.CAFile)
		}
	}

	return &TLSTransport{
		cfg:    cfg,
		roots:  roots,
		events: make(chan LinkEvent, 8),
	}, nil
}

// Connect dials host:port and completes the TLS handshake. It is a no-op
// when already connected.
func (t *TLSTransport) Connect(ctx context.Context, host string, port int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.drainEventsLocked()
	if t.state == Connected {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: t.cfg.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		logger.Component("transport").WithFields(logrus.Fields{
			"addr":  addr,
			"error": err,
		}).Warn("tls-dial-failed")
		return fmt.Errorf("%w: %w", ErrConnectionFailure, err)
	}

	conn := tls.Client(raw, &tls.Config{
		ServerName:         host,
		RootCAs:            t.roots,
		InsecureSkipVerify: t.cfg.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	})
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		if isCertificateError(err) {
			logger.Component("transport").WithFields(logrus.Fields{
				"addr":  addr,
				"error": err,
			}).Error("server-certificate-rejected")
			return fmt.Errorf("%w: %w", ErrCertificateRejected, err)
		}
		logger.Component("transport").WithFields(logrus.Fields{
			"addr":  addr,
			"error": err,
		}).Warn("tls-handshake-failed")
		return fmt.Errorf("%w: %w", ErrConnectionFailure, err)
	}

	t.conn = conn
	t.state = Connected
	logger.Component("transport").WithField("addr", addr).Debug("transport-connected")
	return nil
}

// Disconnect closes the connection. Calling it while disconnected does
// nothing and returns nil.
func (t *TLSTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

// IsConnected reports the state after applying pending link events
func (t *TLSTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drainEventsLocked()
	return t.state == Connected
}

// NotifyLink delivers a link event from the network layer. It never blocks;
// events beyond the queue capacity are dropped, except that the queue is
// drained by every state query.
func (t *TLSTransport) NotifyLink(ev LinkEvent) {
	select {
	case t.events <- ev:
	default:
		logger.Component("transport").WithField("event", ev.String()).Warn("link-event-dropped")
	}
}

// Write sends p. A write error closes the connection.
func (t *TLSTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Connected {
		return 0, ErrNotConnected
	}
	n, err := t.conn.Write(p)
	if err != nil {
		t.closeLocked()
		return n, err
	}
	return n, nil
}

// Read reads whatever is available within the read deadline. A deadline
// expiry is reported as (n, nil).
func (t *TLSTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Connected {
		return 0, ErrNotConnected
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(t.cfg.ReadDeadline)); err != nil {
		t.closeLocked()
		return 0, err
	}
	n, err := t.conn.Read(p)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return n, nil
		}
		t.closeLocked()
		return n, err
	}
	return n, nil
}

func (t *TLSTransport) closeLocked() error {
	if t.state == Disconnected {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.state = Disconnected
	logger.Component("transport").Debug("transport-disconnected")
	return err
}

func (t *TLSTransport) drainEventsLocked() {
	for {
		select {
		case ev := <-t.events:
			logger.Component("transport").WithField("event", ev.String()).Info("link-event")
			if ev == LinkDown {
				t.closeLocked()
			}
		default:
			return
		}
	}
}

func isCertificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	var unknownAuthority x509.UnknownAuthorityError
	var invalid x509.CertificateInvalidError
	var hostname x509.HostnameError
	return errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuthority) ||
		errors.As(err, &invalid) ||
		errors.As(err, &hostname)
}
