//go:build linux

package pump

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// maxReadsPerIteration bounds how many packets are drained from one side
// before servicing the other, so a saturated TUN (or UDP) fd can't starve
// its counterpart.
const maxReadsPerIteration = 64

// snapshotInterval is the cadence at which the status snapshot is
// refreshed; never touched by the per-packet path.
const snapshotInterval = time.Second

// Run drives the dispatch loop until stop is closed. It owns the TUN fd
// and the UDP socket for its entire lifetime; on return both are closed,
// socket first so no further inbound work can be queued, then TUN.
func (pm *Pump) Run(stop <-chan struct{}, overlayAddr, ifaceName string) error {
	// Deferred calls run in reverse: the socket closes first, then TUN.
	defer pm.tun.Close()
	defer pm.sock.Close()

	tunFd := pm.tun.Fd()
	sockFd := pm.sock.Fd()

	tunBuf := make([]byte, maxPacket)
	sockBuf := make([]byte, maxPacket)
	frameBuf := make([]byte, 0, maxPacket)

	lastSnapshot := time.Time{}
	lastSweep := time.Time{}

	fds := []unix.PollFd{
		{Fd: int32(tunFd), Events: unix.POLLIN},
		{Fd: int32(sockFd), Events: unix.POLLIN},
	}

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		_, err := unix.Poll(fds, 1000)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}

		if fds[0].Revents&unix.POLLIN != 0 {
			for i := 0; i < maxReadsPerIteration; i++ {
				n, err := pm.tun.Read(tunBuf)
				if err != nil {
					return err
				}
				if n == 0 {
					break
				}
				pm.handleOutbound(tunBuf[:n], frameBuf)
			}
		}

		if fds[1].Revents&unix.POLLIN != 0 {
			for i := 0; i < maxReadsPerIteration; i++ {
				n, from, err := pm.sock.ReadFrom(sockBuf)
				if err != nil {
					return err
				}
				if n == 0 {
					break
				}
				pm.handleInbound(sockBuf[:n], from)
			}
		}

		now := time.Now()
		if now.Sub(lastSnapshot) >= snapshotInterval {
			pm.publishSnapshot(overlayAddr, ifaceName)
			lastSnapshot = now
		}
		if now.Sub(lastSweep) >= staleThreshold {
			pm.sweepIdlePeers(now)
			lastSweep = now
		}
	}
}
