package softlane

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateConnectOption_WLAN(t *testing.T) {
	info := LaneConnInfo{LinkType: LaneLinkWLAN5G, Addr: "10.0.0.2", Port: 9000, Protocol: ProtocolIP}

	opt, err := translateConnectOption(info)

	require.NoError(t, err)
	assert.Equal(t, ConnectTCP, opt.Type)
	assert.Equal(t, "10.0.0.2", opt.Addr)
	assert.Equal(t, 9000, opt.Port)
}

func TestTranslateConnectOption_ETHAndWLAN2P4GShareTCPShape(t *testing.T) {
	for _, lt := range []LaneLinkType{LaneLinkWLAN2P4G, LaneLinkETH} {
		opt, err := translateConnectOption(LaneConnInfo{LinkType: lt, Addr: "1.2.3.4", Port: 1})
		require.NoError(t, err)
		assert.Equal(t, ConnectTCP, opt.Type)
	}
}

func TestTranslateConnectOption_P2P(t *testing.T) {
	opt, err := translateConnectOption(LaneConnInfo{LinkType: LaneLinkP2P, PeerIP: "192.168.49.1"})

	require.NoError(t, err)
	assert.Equal(t, ConnectP2P, opt.Type)
	assert.Equal(t, "192.168.49.1", opt.PeerIP)
	assert.Equal(t, -1, opt.Port)
	assert.Equal(t, ProtocolIP, opt.Protocol)
}

func TestTranslateConnectOption_P2PReuse(t *testing.T) {
	opt, err := translateConnectOption(LaneConnInfo{LinkType: LaneLinkP2PReuse, Addr: "10.0.0.5", Port: 5000, Protocol: ProtocolIP})

	require.NoError(t, err)
	assert.Equal(t, ConnectP2PReuse, opt.Type)
	assert.Equal(t, "10.0.0.5", opt.Addr)
	assert.Equal(t, 5000, opt.Port)
}

func TestTranslateConnectOption_BR(t *testing.T) {
	opt, err := translateConnectOption(LaneConnInfo{LinkType: LaneLinkBR, BRMac: "aa:bb:cc:dd:ee:ff"})

	require.NoError(t, err)
	assert.Equal(t, ConnectBR, opt.Type)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", opt.BRMac)
}

func TestTranslateConnectOption_BLEAndCoCShareShape(t *testing.T) {
	for _, lt := range []LaneLinkType{LaneLinkBLE, LaneLinkCoC} {
		opt, err := translateConnectOption(LaneConnInfo{
			LinkType:     lt,
			BLEMac:       "11:22:33:44:55:66",
			DeviceIDHash: "hash",
			ProtoType:    2,
			Psm:          128,
		})
		require.NoError(t, err)
		assert.Equal(t, ConnectBLE, opt.Type)
		assert.True(t, opt.FastestConnect)
		assert.Equal(t, int32(128), opt.Psm)
	}
}

func TestTranslateConnectOption_BLEDirectAndCoCDirectShareShape(t *testing.T) {
	for _, lt := range []LaneLinkType{LaneLinkBLEDirect, LaneLinkCoCDirect} {
		opt, err := translateConnectOption(LaneConnInfo{LinkType: lt, NetworkID: "net-1", ProtoType: 3})
		require.NoError(t, err)
		assert.Equal(t, ConnectBLEDirect, opt.Type)
		assert.Equal(t, "net-1", opt.NetworkID)
	}
}

func TestTranslateConnectOption_UnrecognizedKindFails(t *testing.T) {
	_, err := translateConnectOption(LaneConnInfo{LinkType: LaneLinkButt})

	assert.ErrorIs(t, err, ErrInvalidLinkKind)
}

func TestTranslateConnectOption_Idempotent(t *testing.T) {
	info := LaneConnInfo{LinkType: LaneLinkWLAN5G, Addr: "10.0.0.2", Port: 9000, Protocol: ProtocolIP}

	first, err1 := translateConnectOption(info)
	second, err2 := translateConnectOption(info)

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)
}
