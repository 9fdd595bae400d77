package softlane

import "fmt"

// translateConnectOption is the pure function mapping a LaneConnInfo (link
// kind + per-kind address fields) to a ConnectOption the channel opener
// consumes (spec §4.1). It is grounded on the original source's
// TransGetConnectOptByConnInfo dispatch and its Set*ConnInfo per-kind
// helpers — each case below corresponds to one such helper.
func translateConnectOption(info LaneConnInfo) (ConnectOption, error) {
	switch info.LinkType {
	case LaneLinkWLAN2P4G, LaneLinkWLAN5G, LaneLinkETH:
		return setWlanConnInfo(info), nil
	case LaneLinkP2P:
		return setP2PConnInfo(info), nil
	case LaneLinkP2PReuse:
		return setP2PReuseConnInfo(info), nil
	case LaneLinkBR:
		return setBrConnInfo(info), nil
	case LaneLinkBLE, LaneLinkCoC:
		return setBleConnInfo(info), nil
	case LaneLinkBLEDirect, LaneLinkCoCDirect:
		return setBleDirectConnInfo(info), nil
	default:
		return ConnectOption{}, fmt.Errorf("%w: link type %v", ErrInvalidLinkKind, info.LinkType)
	}
}

func setWlanConnInfo(info LaneConnInfo) ConnectOption {
	return ConnectOption{
		Type:     ConnectTCP,
		Addr:     info.Addr,
		Port:     info.Port,
		Protocol: info.Protocol,
	}
}

func setP2PConnInfo(info LaneConnInfo) ConnectOption {
	return ConnectOption{
		Type:     ConnectP2P,
		PeerIP:   info.PeerIP,
		Protocol: ProtocolIP,
		Port:     -1,
	}
}

func setP2PReuseConnInfo(info LaneConnInfo) ConnectOption {
	return ConnectOption{
		Type:     ConnectP2PReuse,
		Addr:     info.Addr,
		Port:     info.Port,
		Protocol: info.Protocol,
	}
}

func setBrConnInfo(info LaneConnInfo) ConnectOption {
	return ConnectOption{
		Type:  ConnectBR,
		BRMac: info.BRMac,
	}
}

func setBleConnInfo(info LaneConnInfo) ConnectOption {
	return ConnectOption{
		Type:           ConnectBLE,
		BLEMac:         info.BLEMac,
		DeviceIDHash:   info.DeviceIDHash,
		ProtoType:      info.ProtoType,
		Psm:            info.Psm,
		FastestConnect: true,
	}
}

func setBleDirectConnInfo(info LaneConnInfo) ConnectOption {
	return ConnectOption{
		Type:      ConnectBLEDirect,
		NetworkID: info.NetworkID,
		ProtoType: info.ProtoType,
	}
}
