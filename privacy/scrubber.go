package privacy

import (
	"net"
	"strings"

	"github.com/prebid/openrtb/v20/openrtb2"
)

// scrubDevice returns a copy of device without the identifiers a bidder could track it by.
// The original is left untouched.
func scrubDevice(device *openrtb2.Device) *openrtb2.Device {
	if device == nil {
		return nil
	}
	scrubbed := *device
	scrubbed.IFA = ""
	scrubbed.DIDMD5 = ""
	scrubbed.DIDSHA1 = ""
	scrubbed.DPIDMD5 = ""
	scrubbed.DPIDSHA1 = ""
	scrubbed.MACMD5 = ""
	scrubbed.MACSHA1 = ""
	scrubbed.IP = scrubIP(device.IP)
	scrubbed.IPv6 = scrubIPv6(device.IPv6)
	return &scrubbed
}

// scrubUser returns a copy of user without its ids, demographics or extended ids.
func scrubUser(user *openrtb2.User) *openrtb2.User {
	if user == nil {
		return nil
	}
	scrubbed := *user
	scrubbed.ID = ""
	scrubbed.BuyerUID = ""
	scrubbed.Yob = 0
	scrubbed.Gender = ""
	scrubbed.EIDs = nil
	return &scrubbed
}

// scrubIP zeroes the last octet of an IPv4 address.
func scrubIP(ip string) string {
	i := strings.LastIndex(ip, ".")
	if i < 0 {
		return ip
	}
	return ip[:i] + ".0"
}

// ipv6KeptBits is the prefix of an IPv6 address left after scrubbing.
const ipv6KeptBits = 56

// scrubIPv6 keeps the first ipv6KeptBits of an IPv6 address. Anything else is dropped.
func scrubIPv6(ip string) string {
	if ip == "" {
		return ""
	}
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() != nil {
		return ""
	}
	return parsed.Mask(net.CIDRMask(ipv6KeptBits, 128)).String()
}
