package softlane

import "errors"

// Sentinel errors mirror the kind taxonomy of spec §7 (trans_lane_pending_ctl.c's
// SOFTBUS_* return codes), one exported value per kind rather than an integer
// code, following channeltransport/crypto.go's Err... block.
var (
	// ErrInvalidParam is returned for a nil or otherwise impossible input —
	// a null pointer or an unmappable transport type in the C source.
	ErrInvalidParam = errors.New("softlane: invalid parameter")
	// ErrOom is returned when a deep copy or entry allocation fails.
	ErrOom = errors.New("softlane: allocation failed")
	// ErrLockError is returned when a table's mutex cannot be acquired for
	// the operation; fatal for the request, not for the process.
	ErrLockError = errors.New("softlane: lock acquisition failed")
	// ErrNotFound is returned when a handle is absent from its table.
	ErrNotFound = errors.New("softlane: handle not found")
	// ErrTimeout is returned when a sync wait exceeds its budget.
	ErrTimeout = errors.New("softlane: pending wait timed out")
	// ErrUpstreamLane is returned when the Lane Manager rejects a submit or
	// reports failure via callback.
	ErrUpstreamLane = errors.New("softlane: lane manager rejected request")
	// ErrChannelOpen is returned for any failure in the async channel
	// driver's translate/open/set-channel-info steps.
	ErrChannelOpen = errors.New("softlane: channel open failed")
	// ErrRegistry is returned when the Lane Resource Registry rejects a
	// channel-to-lane binding.
	ErrRegistry = errors.New("softlane: registry rejected binding")
	// ErrInvalidLinkKind is returned by the ConnectOption translator for an
	// unrecognized LaneLinkType.
	ErrInvalidLinkKind = errors.New("softlane: unrecognized lane link kind")
	// ErrInvalidSessionType is returned by the shaper when session
	// attributes cannot be mapped to a transport type.
	ErrInvalidSessionType = errors.New("softlane: unmappable session type")
	// ErrUnsupportedLink is returned by DefaultChannelOpener for connect
	// option kinds it does not implement (BR/BLE/P2P/HML — hardware-bound,
	// out of this module's scope).
	ErrUnsupportedLink = errors.New("softlane: channel opener does not support this link kind")
	// ErrShutdown is delivered to every outstanding sync waiter when
	// Controller.Deinit drains the tables.
	ErrShutdown = errors.New("softlane: controller shutting down")
	// ErrClosed is returned by requests submitted after Deinit.
	ErrClosed = errors.New("softlane: controller closed")
)
