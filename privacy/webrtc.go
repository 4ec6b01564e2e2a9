// SPDX-License-Identifier: GPL-3.0-or-later

package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"
)

// ICECandidateType is the candidate kind as defined by the ICE protocol.
type ICECandidateType string

const (
	ICETypeHost  ICECandidateType = "host"
	ICETypeSrflx ICECandidateType = "srflx"
	ICETypeRelay ICECandidateType = "relay"
	ICETypePrflx ICECandidateType = "prflx"
)

// ICETransport is the transport protocol a candidate advertises.
type ICETransport string

const (
	ICETransportUDP ICETransport = "udp"
	ICETransportTCP ICETransport = "tcp"
)

// ICECandidate is a parsed "candidate:" attribute line.
type ICECandidate struct {
	Foundation string
	Component  int
	Transport  ICETransport
	Priority   uint32
	Address    string
	Port       int
	Type       ICECandidateType
	Raw        string
}

var candidateLinePattern = regexp.MustCompile(
	`^candidate:(\S+)\s+(\d+)\s+(\S+)\s+(\d+)\s+(\S+)\s+(\d+)\s+typ\s+(\S+)`)

// ParseICECandidate parses a single SDP "candidate:" attribute line into
// its constituent fields.
func ParseICECandidate(line string) (ICECandidate, error) {
	m := candidateLinePattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return ICECandidate{}, fmt.Errorf("privacy: malformed ICE candidate: %q", line)
	}
	component, _ := strconv.Atoi(m[2])
	priority, _ := strconv.ParseUint(m[4], 10, 32)
	port, _ := strconv.Atoi(m[6])
	return ICECandidate{
		Foundation: m[1],
		Component:  component,
		Transport:  ICETransport(strings.ToLower(m[3])),
		Priority:   uint32(priority),
		Address:    m[5],
		Port:       port,
		Type:       ICECandidateType(m[7]),
		Raw:        line,
	}, nil
}

// String renders the candidate back to its SDP attribute form.
func (c ICECandidate) String() string {
	return fmt.Sprintf("candidate:%s %d %s %d %s %d typ %s",
		c.Foundation, c.Component, c.Transport, c.Priority, c.Address, c.Port, c.Type)
}

// ICESanitizer rewrites or drops ICE candidates per an [ICEPolicy], per
// §4.6's mDNS/transport/relay-only rules.
type ICESanitizer struct {
	Policy        ICEPolicy
	DisableIPv6   bool
	DisableTCP    bool
	DisableUDP    bool
	salt          []byte
	mu            sync.Mutex
	sessionHashes map[string]string
}

// NewICESanitizer builds a sanitizer keyed by a per-machine salt; the same
// sanitizer instance should be reused for the lifetime of one WebRTC
// session so that repeated candidates for the same IP map to the same
// synthetic hostname.
func NewICESanitizer(policy ICEPolicy, machineSalt []byte) *ICESanitizer {
	return &ICESanitizer{
		Policy:        policy,
		salt:          machineSalt,
		sessionHashes: make(map[string]string),
	}
}

// Sanitize filters and rewrites candidates per the sanitizer's policy.
func (s *ICESanitizer) Sanitize(candidates []ICECandidate) []ICECandidate {
	out := make([]ICECandidate, 0, len(candidates))
	for _, c := range candidates {
		rewritten, keep := s.sanitizeOne(c)
		if keep {
			out = append(out, rewritten)
		}
	}
	return out
}

func (s *ICESanitizer) sanitizeOne(c ICECandidate) (ICECandidate, bool) {
	if s.Policy == ICERelayOnly && c.Type != ICETypeRelay {
		return c, false
	}
	if s.DisableTCP && c.Transport == ICETransportTCP {
		return c, false
	}
	if s.DisableUDP && c.Transport == ICETransportUDP {
		return c, false
	}
	if s.DisableIPv6 && isIPv6(c.Address) {
		return c, false
	}

	if (s.Policy == ICEMDNSOnly || s.Policy == ICEDefault) && c.Type == ICETypeHost && isLiteralIP(c.Address) {
		c.Address = s.stableMDNSName(c.Address)
	}

	return c, true
}

func isIPv6(addr string) bool {
	ip := net.ParseIP(addr)
	return ip != nil && ip.To4() == nil
}

func isLiteralIP(addr string) bool {
	return net.ParseIP(addr) != nil
}

// stableMDNSName derives a synthetic "<hash>.local" hostname for addr via
// HKDF-SHA256 (RFC 5869), keyed by the sanitizer's per-machine salt and
// the candidate address as HKDF "info". The name is stable for the same
// IP within this sanitizer's lifetime but not predictable or reversible by
// an observer without the salt.
func (s *ICESanitizer) stableMDNSName(addr string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name, ok := s.sessionHashes[addr]; ok {
		return name
	}

	reader := hkdf.New(sha256.New, s.salt, nil, []byte(addr))
	digest := make([]byte, 8)
	_, _ = io.ReadFull(reader, digest)
	name := hex.EncodeToString(digest) + ".local"
	s.sessionHashes[addr] = name
	return name
}
