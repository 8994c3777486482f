package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/san-kum/agsteer/internal/logging"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type packetConn interface {
	ReadFrom(p []byte) (int, net.Addr, error)
	Close() error
}

type (
	resolveFunc func(network, address string) (*net.UDPAddr, error)
	dialFunc    func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)
	listenFunc  func(network, address string) (packetConn, error)
)

// UDP sends frames to the steering module's address and optionally reads
// its replies on a local port. Each datagram carries one frame.
type UDP struct {
	dest   string
	conn   udpConn
	listen string
	lf     listenFunc
	log    *logging.Logger
}

// DialUDP connects to dest. listen may be empty when no replies are
// expected.
func DialUDP(dest, listen string, lg *logging.Logger) (*UDP, error) {
	return newUDP(dest, listen, lg, net.ResolveUDPAddr,
		func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
			return net.DialUDP(network, laddr, raddr)
		},
		func(network, address string) (packetConn, error) {
			return net.ListenPacket(network, address)
		})
}

func newUDP(dest, listen string, lg *logging.Logger, resolve resolveFunc, dial dialFunc, lf listenFunc) (*UDP, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &UDP{dest: dest, conn: conn, listen: listen, lf: lf, log: lg}, nil
}

func (u *UDP) Send(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	_, err := u.conn.Write(frame)
	return err
}

func (u *UDP) Close() error {
	if u.conn == nil {
		return nil
	}
	return u.conn.Close()
}

// Listen binds the local port and delivers each received datagram.
func (u *UDP) Listen(ctx context.Context) <-chan []byte {
	out := make(chan []byte, 16)
	if u.listen == "" || u.lf == nil {
		close(out)
		return out
	}
	pc, err := u.lf("udp", u.listen)
	if err != nil {
		u.log.Error("udp listen failed", "addr", u.listen, "error", err)
		close(out)
		return out
	}
	stop := context.AfterFunc(ctx, func() { pc.Close() })
	go func() {
		defer close(out)
		defer func() {
			if stop() {
				pc.Close()
			}
		}()
		buf := make([]byte, 512)
		for {
			n, _, err := pc.ReadFrom(buf)
			if err != nil {
				if ctx.Err() == nil {
					u.log.Warn("udp read failed", "addr", u.listen, "error", err)
				}
				return
			}
			select {
			case out <- append([]byte(nil), buf[:n]...):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
