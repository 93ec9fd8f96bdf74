package ssdp

import (
	"fmt"
	"net"
	"strings"

	"github.com/lunDreame/st-bridge/internal/logger"
)

const (
	multicastAddr = "239.255.255.250:1900"

	// SearchTarget is the service type the edge driver searches for.
	SearchTarget = "urn:st-bridge:service:bridge:1"
)

// Responder answers SSDP M-SEARCH probes for the st-bridge service only, so
// the hub can locate the bridge's TCP port without manual configuration.
type Responder struct {
	bridgeID string
	name     string
	port     int
	log      *logger.Logger
}

func NewResponder(bridgeID, name string, port int, log *logger.Logger) *Responder {
	return &Responder{bridgeID: bridgeID, name: name, port: port, log: log}
}

// Serve joins the SSDP multicast group and answers probes until done is
// closed or the first permanent read error.
func (r *Responder) Serve(done <-chan struct{}) error {
	addr, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("ssdp: listen: %w", err)
	}
	go func() {
		<-done
		_ = conn.Close()
	}()
	r.log.Infow("ssdp responder started", "port", r.port)

	buf := make([]byte, 2048)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-done:
				return nil
			default:
				return fmt.Errorf("ssdp: read: %w", err)
			}
		}
		if msg, ok := parseSearch(string(buf[:n])); ok && r.matches(msg) {
			r.respond(src)
		}
	}
}

type search struct {
	st  string
	man string
}

func parseSearch(text string) (search, bool) {
	first, rest, _ := strings.Cut(text, "\r\n")
	if !strings.HasPrefix(strings.ToUpper(first), "M-SEARCH") {
		return search{}, false
	}
	var out search
	for _, line := range strings.Split(rest, "\r\n") {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(k)) {
		case "ST":
			out.st = strings.TrimSpace(v)
		case "MAN":
			out.man = strings.TrimSpace(v)
		}
	}
	return out, true
}

func (r *Responder) matches(s search) bool {
	if s.st != SearchTarget && s.st != "ssdp:all" {
		return false
	}
	return strings.Contains(s.man, "ssdp:discover")
}

func (r *Responder) respond(dest *net.UDPAddr) {
	conn, err := net.DialUDP("udp4", nil, dest)
	if err != nil {
		return
	}
	defer conn.Close()

	resp := fmt.Sprintf("HTTP/1.1 200 OK\r\n"+
		"CACHE-CONTROL: max-age=60\r\n"+
		"EXT:\r\n"+
		"ST: %s\r\n"+
		"USN: uuid:st-bridge-%s\r\n"+
		"SERVER: st-bridge/1.1 UPnP/1.1\r\n"+
		"BRIDGE-ID: %s\r\n"+
		"BRIDGE-NAME: %s\r\n"+
		"BRIDGE-PORT: %d\r\n\r\n",
		SearchTarget, r.bridgeID, r.bridgeID, r.name, r.port)

	if _, err := conn.Write([]byte(resp)); err != nil {
		r.log.Debugw("ssdp response failed", "dest", dest.String(), "err", err)
	}
}
