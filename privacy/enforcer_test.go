package privacy

import (
	"testing"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"

	"github.com/prebid/auction-orchestrator/config"
)

func TestMaskBlockedBidder(t *testing.T) {
	enforcer := NewEnforcer(config.Privacy{BlockedBidders: []string{"AppNexus"}})

	user, device, blocked := enforcer.Mask("appnexus", &openrtb2.User{ID: "u"}, &openrtb2.Device{IFA: "ifa"})

	assert.True(t, blocked)
	assert.Nil(t, user)
	assert.Nil(t, device)
}

func TestMaskLimitedAdTracking(t *testing.T) {
	var restricted int8 = 1
	var unrestricted int8 = 0

	testCases := []struct {
		desc           string
		enforceLMT     bool
		lmt            *int8
		expectScrubbed bool
	}{
		{desc: "lmt set and enforced", enforceLMT: true, lmt: &restricted, expectScrubbed: true},
		{desc: "lmt set but not enforced", enforceLMT: false, lmt: &restricted, expectScrubbed: false},
		{desc: "lmt off", enforceLMT: true, lmt: &unrestricted, expectScrubbed: false},
		{desc: "lmt missing", enforceLMT: true, lmt: nil, expectScrubbed: false},
	}

	for _, test := range testCases {
		enforcer := NewEnforcer(config.Privacy{EnforceLMT: test.enforceLMT})
		user := &openrtb2.User{ID: "u", BuyerUID: "b", Yob: 1980, Gender: "F"}
		device := &openrtb2.Device{IFA: "ifa", MACSHA1: "mac", IP: "10.1.2.3", Lmt: test.lmt}

		maskedUser, maskedDevice, blocked := enforcer.Mask("appnexus", user, device)

		assert.False(t, blocked, test.desc)
		if test.expectScrubbed {
			assert.Equal(t, &openrtb2.User{}, maskedUser, test.desc)
			assert.Equal(t, "", maskedDevice.IFA, test.desc)
			assert.Equal(t, "", maskedDevice.MACSHA1, test.desc)
			assert.Equal(t, "10.1.2.0", maskedDevice.IP, test.desc)
		} else {
			assert.Same(t, user, maskedUser, test.desc)
			assert.Same(t, device, maskedDevice, test.desc)
		}
		assert.Equal(t, "u", user.ID, "%s: the original user must not change", test.desc)
		assert.Equal(t, "ifa", device.IFA, "%s: the original device must not change", test.desc)
	}
}

func TestScrubIPv6(t *testing.T) {
	assert.Equal(t, "2001:db8:1234:5600::", scrubIPv6("2001:db8:1234:5678:9abc::1"))
	assert.Equal(t, "", scrubIPv6(""))
	assert.Equal(t, "", scrubIPv6("not an ip"))
	assert.Equal(t, "", scrubIPv6("10.0.0.1"))
}

func TestScrubIP(t *testing.T) {
	assert.Equal(t, "192.168.1.0", scrubIP("192.168.1.77"))
	assert.Equal(t, "", scrubIP(""))
	assert.Equal(t, "2001:db8::1", scrubIP("2001:db8::1"))
}
