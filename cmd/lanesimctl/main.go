// Command lanesimctl drives one synchronous lane request against an
// in-memory Lane Manager fake and prints the resulting ConnectOption. A
// DefaultChannelOpener is wired into the Controller, but RequestSync does
// not open a channel, so no channel is dialed and no channel id is
// printed. It is grounded on
// cmd/azurl/main.go's flag-driven main() shape, adapted from "build an Azure
// connection string" to "drive one lane request end to end".
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	softlane "github.com/atsika/softlane"
)

func main() {
	sessionFlag := flag.String("session", "com.example.demo-session", "Session name to request a lane for")
	peerFlag := flag.String("peer", "demo-peer-network-id", "Peer network id")
	addrFlag := flag.String("addr", "", "If set, report this host:port in the synthetic WLAN result instead of 10.0.0.2:9000")
	qosFlag := flag.Bool("qos", false, "Request a QoS lane instead of the legacy path")
	timeoutFlag := flag.Duration("timeout", softlane.PendingTimeout, "Pending request timeout")

	flag.Usage = printUsage
	flag.Parse()

	host, port := "10.0.0.2", 9000
	if *addrFlag != "" {
		var err error
		host, port, err = splitHostPort(*addrFlag)
		if err != nil {
			log.Fatalf("invalid -addr: %v", err)
		}
	}

	manager := &simLaneManager{host: host, port: port}
	ledger := &simPeerLedger{}
	opener := softlane.NewDefaultChannelOpener()

	ctrl := softlane.NewController(
		softlane.WithPendingTimeout(*timeoutFlag),
		softlane.WithLaneManager(manager),
		softlane.WithPeerLedger(ledger),
		softlane.WithChannelOpener(opener),
	)
	defer ctrl.Deinit()

	param := softlane.SessionParam{
		SessionName:   *sessionFlag,
		PeerNetworkID: *peerFlag,
		IsQosLane:     *qosFlag,
		Attr: softlane.SessionAttr{
			PreferredLink: []softlane.LaneLinkType{softlane.LaneLinkWLAN5G},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag+time.Second)
	defer cancel()

	opt, err := ctrl.RequestSync(ctx, param)
	if err != nil {
		log.Fatalf("lane request failed: %v", err)
	}

	fmt.Printf("connect option: type=%v addr=%s port=%d protocol=%v\n", opt.Type, opt.Addr, opt.Port, opt.Protocol)
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return host, port, nil
}

func printUsage() {
	fmt.Println("lanesimctl - drive one synchronous lane request end to end")
	fmt.Println("Usage:")
	fmt.Println("  lanesimctl [-session <name>] [-peer <id>] [-addr host:port] [-qos] [-timeout <duration>]")
}
