package iptools

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// BestLocalIP returns the local IPv4 address most likely to be
// reachable from the given target host. Interfaces are compared by
// the length of the shared binary prefix with the target, which
// favors the interface that sits on the renderer's subnet. Falls back
// to the UDP-dial trick when the target does not parse as IPv4.
func BestLocalIP(targetHost string) (string, error) {
	target := net.ParseIP(targetHost)
	if v4 := target.To4(); v4 != nil {
		if ip, ok := bestPrefixMatch(v4); ok {
			return ip, nil
		}
	}

	return localIPByDial(targetHost)
}

func bestPrefixMatch(target net.IP) (string, bool) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", false
	}

	targetBits := binary.BigEndian.Uint32(target)
	var (
		best     string
		bestBits = -1
	)
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		v4 := ipnet.IP.To4()
		if v4 == nil || ipnet.IP.IsLoopback() {
			continue
		}
		candidate := binary.BigEndian.Uint32(v4)
		matchBits := leadingZeros32(targetBits ^ candidate)
		if matchBits > bestBits {
			bestBits = matchBits
			best = v4.String()
		}
	}

	return best, best != ""
}

func leadingZeros32(v uint32) int {
	n := 0
	for i := 31; i >= 0; i-- {
		if v&(1<<uint(i)) != 0 {
			break
		}
		n++
	}
	return n
}

func localIPByDial(targetHost string) (string, error) {
	conn, err := net.Dial("udp", net.JoinHostPort(targetHost, "9"))
	if err != nil {
		return "", fmt.Errorf("BestLocalIP UDP call error: %w", err)
	}
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return "", fmt.Errorf("BestLocalIP local addr error: %w", err)
	}

	return host, nil
}

// HostOf extracts the bare host from an absolute URL.
func HostOf(rawurl string) (string, error) {
	parsed, err := url.Parse(rawurl)
	if err != nil {
		return "", fmt.Errorf("HostOf parse error: %w", err)
	}
	return parsed.Hostname(), nil
}

// CheckAndPickPort probes for a free TCP port starting at port,
// walking upwards when the requested one is taken.
func CheckAndPickPort(ip string, port int) (int, error) {
	var numberOfchecks int
	for {
		numberOfchecks++
		ln, err := net.Listen("tcp", ip+":"+strconv.Itoa(port))
		if err != nil {
			if strings.Contains(err.Error(), "address already in use") {
				if numberOfchecks == 1000 {
					return 0, fmt.Errorf("port pick error. Checked 1000 ports: %w", err)
				}
				port++
				continue
			}
			return 0, fmt.Errorf("port pick error: %w", err)
		}
		ln.Close()
		return port, nil
	}
}
