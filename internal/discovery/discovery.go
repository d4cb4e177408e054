package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"ecgview/internal/protocol"
)

// ErrNoServer means no server answered before the deadline.
var ErrNoServer = errors.New("discovery: no server answered")

// Listen answers discovery probes on UDP port with baseURL until ctx is done.
func Listen(ctx context.Context, port int, baseURL string, logger zerolog.Logger) error {
	addr := &net.UDPAddr{
		Port: port,
		IP:   net.ParseIP("0.0.0.0"),
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("discovery: bind udp %d: %w", port, err)
	}
	return Serve(ctx, conn, baseURL, logger)
}

// Serve answers probes on an already bound socket. It closes conn on return.
func Serve(ctx context.Context, conn net.PacketConn, baseURL string, logger zerolog.Logger) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info().Str("addr", conn.LocalAddr().String()).Msg("discovery listening")

	buf := make([]byte, protocol.BufferSize)
	for {
		n, remoteAddr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logger.Warn().Err(err).Msg("error reading discovery probe")
				continue
			}
			return fmt.Errorf("discovery: read probe: %w", err)
		}

		if string(buf[:n]) != protocol.DiscoveryMsg {
			continue
		}
		logger.Debug().Str("remote", remoteAddr.String()).Msg("received discovery request")
		if _, err := conn.WriteTo([]byte(baseURL), remoteAddr); err != nil {
			logger.Warn().Err(err).Str("remote", remoteAddr.String()).Msg("error sending discovery response")
		}
	}
}

// DefaultTargets is the global broadcast address, then loopback.
func DefaultTargets(port int) []string {
	p := strconv.Itoa(port)
	return []string{"255.255.255.255:" + p, "127.0.0.1:" + p}
}

// FindServer probes every target and returns the first base URL announced.
func FindServer(ctx context.Context, targets []string, timeout time.Duration) (string, error) {
	// Listen on a random UDP port for the response (Force IPv4)
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return "", fmt.Errorf("discovery: listen: %w", err)
	}
	defer conn.Close()

	sent := 0
	var lastErr error
	for _, target := range targets {
		addr, err := net.ResolveUDPAddr("udp4", target)
		if err != nil {
			lastErr = err
			continue
		}
		// broadcast is often refused in containers; the next target covers it
		if _, err := conn.WriteTo([]byte(protocol.DiscoveryMsg), addr); err != nil {
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 {
		return "", fmt.Errorf("discovery: no probe could be sent: %w", lastErr)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return "", err
	}

	buf := make([]byte, protocol.BufferSize)
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return "", ErrNoServer
		}
		return "", fmt.Errorf("discovery: read answer: %w", err)
	}
	return string(buf[:n]), nil
}

// LocalIP returns the first non-loopback IPv4 address of the host.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String()
			}
		}
	}
	return ""
}
