package quic

import (
	"context"
	"crypto/tls"
	"io"
	"sync"

	"github.com/pkg/errors"
	quicgo "github.com/quic-go/quic-go"

	"github.com/zeusync/pitchside/internal/core/protocol"
)

func defaultConfig() *quicgo.Config {
	return &quicgo.Config{
		MaxIdleTimeout:  DefaultIdleTimeout,
		KeepAlivePeriod: DefaultKeepAlive,
	}
}

// Port is one bidirectional stream standing in for the serial line.
type Port struct {
	conn   *quicgo.Conn
	stream *quicgo.Stream
	once   sync.Once
	err    error
}

// Dial connects to a bridge and opens the link stream.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config) (*Port, error) {
	conn, err := quicgo.DialAddr(ctx, addr, tlsConf, defaultConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return nil, errors.Wrapf(err, "open stream to %s", addr)
	}
	return &Port{conn: conn, stream: stream}, nil
}

// Opener adapts Dial to a protocol.OpenFunc.
func Opener(addr string, tlsConf *tls.Config) protocol.OpenFunc {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		port, err := Dial(ctx, addr, tlsConf)
		if err != nil {
			return nil, err
		}
		return port, nil
	}
}

func (p *Port) Read(buf []byte) (int, error)  { return p.stream.Read(buf) }
func (p *Port) Write(buf []byte) (int, error) { return p.stream.Write(buf) }

func (p *Port) Close() error {
	p.once.Do(func() {
		p.stream.CancelRead(0)
		if err := p.stream.Close(); err != nil {
			p.err = errors.Wrap(err, "close stream")
		}
		if err := p.conn.CloseWithError(0, "link closed"); err != nil && p.err == nil {
			p.err = errors.Wrap(err, "close connection")
		}
	})
	return p.err
}

// Listener is the bridge end: it accepts robot link streams.
type Listener struct {
	ln *quicgo.Listener
}

func Listen(addr string, tlsConf *tls.Config) (*Listener, error) {
	ln, err := quicgo.ListenAddr(addr, tlsConf, defaultConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}
	return &Listener{ln: ln}, nil
}

func (l *Listener) Addr() string { return l.ln.Addr().String() }

// Accept waits for a client and its first stream. The stream surfaces once
// the client has written to it.
func (l *Listener) Accept(ctx context.Context) (*Port, error) {
	conn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "accept connection")
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return nil, errors.Wrap(err, "accept stream")
	}
	return &Port{conn: conn, stream: stream}, nil
}

func (l *Listener) Close() error {
	return l.ln.Close()
}
