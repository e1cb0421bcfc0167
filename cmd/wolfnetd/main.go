// Command wolfnetd is the WolfNet daemon: it loads or generates the node's
// identity, creates and configures a TUN interface, binds a UDP socket,
// loads the peer list, and runs the packet pump until interrupted.
package main

import (
	"flag"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"wolfnet/internal/elevation"
	"wolfnet/internal/identity"
	"wolfnet/internal/iproute"
	"wolfnet/internal/logging"
	"wolfnet/internal/peer"
	"wolfnet/internal/peerconfig"
	"wolfnet/internal/pump"
	"wolfnet/internal/tun"
)

const appName = "wolfnetd"

func main() {
	keyPath := flag.String("key", "/etc/wolfnet/private.key", "path to the node's private key file")
	peersPath := flag.String("peers", "/etc/wolfnet/peers.json", "path to the peer list")
	ifaceName := flag.String("iface", "wolfnet0", "TUN interface name")
	overlayCIDR := flag.String("addr", "", "overlay address in CIDR form, e.g. 10.0.10.1/24")
	mtu := flag.Int("mtu", 1400, "TUN interface MTU")
	listenPort := flag.Uint("port", 51820, "UDP listen port")
	hostname := flag.String("hostname", "", "hostname reported in status snapshots (defaults to os.Hostname)")
	gateway := flag.Bool("gateway", false, "advertise this node as a gateway")
	flag.Parse()

	if err := run(*keyPath, *peersPath, *ifaceName, *overlayCIDR, *mtu, uint16(*listenPort), *hostname, *gateway); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func run(keyPath, peersPath, ifaceName, overlayCIDR string, mtu int, listenPort uint16, hostname string, gateway bool) error {
	if !elevation.IsElevated() {
		return fmt.Errorf("%s", elevation.Hint())
	}
	if overlayCIDR == "" {
		return fmt.Errorf("-addr is required (overlay CIDR, e.g. 10.0.10.1/24)")
	}
	addr, err := netip.ParsePrefix(overlayCIDR)
	if err != nil {
		return fmt.Errorf("invalid -addr %q: %w", overlayCIDR, err)
	}
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	log := logging.NewStdLogger()

	id, err := identity.LoadOrGenerate(keyPath)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	defer id.Zero()
	log.Printf("%s: identity loaded, public key %s", appName, id.PublicKeyBase64())

	dev, err := tun.Open(ifaceName)
	if err != nil {
		return fmt.Errorf("create tun: %w", err)
	}
	defer dev.Close()

	ipw := iproute.NewWrapper(iproute.NewExecCommander())
	mtuErr, fatalErr := tun.Configure(ipw, dev.Name(), addr, mtu)
	if fatalErr != nil {
		return fmt.Errorf("configure tun: %w", fatalErr)
	}
	if mtuErr != nil {
		log.Printf("%s: warning: set mtu failed: %v", appName, mtuErr)
	}
	log.Printf("%s: tun %s up with address %s", appName, dev.Name(), addr)

	table := peer.NewTable()
	if records, err := peerconfig.Load(peersPath); err != nil {
		log.Printf("%s: warning: load peers: %v", appName, err)
	} else {
		for _, rec := range records {
			d := peer.Descriptor{
				PublicKey: rec.PublicKey,
				PeerID:    identity.PeerID(rec.PublicKey),
				AllowedIP: rec.AllowedIP,
				Name:      rec.Name,
				Gateway:   rec.Gateway,
			}
			p := peer.New(d)
			if rec.Endpoint != nil {
				p.SetEndpoint(*rec.Endpoint)
			}
			table.Add(p)
		}
	}
	log.Printf("%s: loaded %d peers", appName, len(table.All()))

	sock, err := pump.NewUDPSocket(listenPort)
	if err != nil {
		return fmt.Errorf("bind udp socket: %w", err)
	}

	metrics := pump.NewMetrics(prometheus.DefaultRegisterer)
	pm := pump.New(id, dev, sock, table, metrics, log, hostname, listenPort, gateway)

	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("%s: shutdown signal received", appName)
		close(stop)
	}()

	log.Printf("%s: pump running on %s:%d", appName, dev.Name(), listenPort)
	return pm.Run(stop, addr.Addr().String(), dev.Name())
}
