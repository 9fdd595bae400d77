package softlane

import (
	"sync"
)

// pendingTable is one of the Controller's two parallel tables (sync, async),
// each keyed by LaneHandle and guarded by its own mutex (spec §4.3). The
// original source's per-entry SoftBusCond becomes a per-entry buffered
// channel (see types.go's pendingEntry.resultCh and SPEC_FULL.md §0); this
// is the same shape as mash-go/pkg/interaction/client.go's
// `pending map[uint32]chan *wire.Response`.
type pendingTable struct {
	mu      sync.Mutex
	entries map[LaneHandle]*pendingEntry
	isAsync bool
}

func newPendingTable(isAsync bool) *pendingTable {
	return &pendingTable{
		entries: make(map[LaneHandle]*pendingEntry),
		isAsync: isAsync,
	}
}

// add allocates and inserts a sync entry (spec §4.3 add).
func (t *pendingTable) add(handle LaneHandle) (*pendingEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[handle]; exists {
		return nil, ErrInvalidParam
	}
	entry := &pendingEntry{
		handle:   handle,
		isAsync:  false,
		errCode:  ErrUpstreamLane,
		resultCh: make(chan pendingResult, 1),
	}
	t.entries[handle] = entry
	return entry, nil
}

// addAsync allocates and inserts an async entry carrying a deep copy of
// param (spec §4.3 add_async). The deep copy keeps the caller's
// SessionParam from being aliased past the entry's lifetime.
func (t *pendingTable) addAsync(handle LaneHandle, param SessionParam, firstTokenID int64) (*pendingEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[handle]; exists {
		return nil, ErrInvalidParam
	}

	copied, err := deepCopySessionParam(param)
	if err != nil {
		return nil, err
	}

	entry := &pendingEntry{
		handle:       handle,
		isAsync:      true,
		errCode:      ErrUpstreamLane,
		param:        copied,
		firstTokenID: firstTokenID,
	}
	t.entries[handle] = entry
	return entry, nil
}

// update writes a callback result under the table lock and, for sync
// entries, signals the waiter via its buffered channel (spec §4.3 update).
func (t *pendingTable) update(handle LaneHandle, success bool, connInfo LaneConnInfo, errCode error) error {
	t.mu.Lock()
	entry, ok := t.entries[handle]
	if !ok {
		t.mu.Unlock()
		return ErrNotFound
	}
	if entry.finished {
		t.mu.Unlock()
		return nil
	}
	entry.success = success
	entry.connInfo = connInfo
	entry.errCode = errCode
	entry.finished = true
	t.mu.Unlock()

	if !entry.isAsync {
		entry.resultCh <- pendingResult{success: success, connInfo: connInfo, errCode: errCode}
	}
	return nil
}

// lookupResult returns a sync entry's terminal result (spec §4.3
// lookup_result). The caller must have already observed finished via wait.
func (t *pendingTable) lookupResult(handle LaneHandle) (pendingResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[handle]
	if !ok {
		return pendingResult{}, ErrNotFound
	}
	return pendingResult{success: entry.success, connInfo: entry.connInfo, errCode: entry.errCode}, nil
}

// lookupParam returns a shallow view of an async entry's deep-copied param
// (spec §4.3 lookup_param). Callers must not retain the returned pointer
// past remove(handle).
func (t *pendingTable) lookupParam(handle LaneHandle) (*SessionParam, int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[handle]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return entry.param, entry.firstTokenID, nil
}

// remove unlinks and frees an entry (spec §4.3 remove). For sync entries the
// resultCh is simply left for garbage collection — there is no destroy
// step analogous to the C source's condition-variable teardown since the
// channel owns no external resource.
func (t *pendingTable) remove(handle LaneHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, handle)
}

// drain delivers ErrShutdown to every outstanding sync waiter and empties
// the table (spec §9 "Global tables" deinit contract).
func (t *pendingTable) drain() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for handle, entry := range t.entries {
		if !entry.isAsync && !entry.finished {
			entry.finished = true
			entry.errCode = ErrShutdown
			entry.resultCh <- pendingResult{success: false, errCode: ErrShutdown}
		}
		delete(t.entries, handle)
	}
}

// deepCopySessionParam copies every string/slice field of param into
// independently owned storage, matching CopyAsyncReqItemSessionParam's
// intent without a manual free: once the entry is unreachable (removed from
// the table), the copy becomes unreachable too.
func deepCopySessionParam(param SessionParam) (*SessionParam, error) {
	copied := param

	copied.SessionName = copyString(param.SessionName)
	copied.PeerSessionName = copyString(param.PeerSessionName)
	copied.PeerNetworkID = copyString(param.PeerNetworkID)
	copied.GroupID = copyString(param.GroupID)
	copied.Pkg = copyString(param.Pkg)

	if param.Attr.PreferredLink != nil {
		copied.Attr.PreferredLink = append([]LaneLinkType(nil), param.Attr.PreferredLink...)
	}
	if param.Attr.Qos != nil {
		copied.Attr.Qos = append([]QosItem(nil), param.Attr.Qos...)
	}

	return &copied, nil
}

func copyString(s string) string {
	if s == "" {
		return ""
	}
	b := make([]byte, len(s))
	copy(b, s)
	return string(b)
}
