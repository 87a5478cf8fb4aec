package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// UDPListener feeds a Receiver from JSON datagrams.
type UDPListener struct {
	conn *net.UDPConn
	recv *Receiver
	done chan struct{}
}

// ListenUDP binds addr and starts reading datagrams until ctx is done or
// Close is called.
func ListenUDP(ctx context.Context, addr string, recv *Receiver) (*UDPListener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	l := &UDPListener{conn: conn, recv: recv, done: make(chan struct{})}
	go l.serve()
	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-l.done:
		}
	}()
	return l, nil
}

// Addr returns the bound local address.
func (l *UDPListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Close stops the listener and waits for the read loop to exit.
func (l *UDPListener) Close() error {
	err := l.conn.Close()
	<-l.done
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (l *UDPListener) serve() {
	defer close(l.done)
	buf := make([]byte, 2048)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		l.recv.Handle(buf[:n])
	}
}
