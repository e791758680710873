package event

type Kind int

const (
	KindSpawn Kind = iota
	KindJoin
	KindLockAcquire
	KindLockRelease
	KindRead
	KindWrite
	KindAtomicLoad
	KindAtomicStore
	KindAtomicRMW
	KindSend
	KindRecv
	KindClose
	KindNotify
	KindWait
	KindRandom
	KindYield
	KindTaskEnd
	KindRPC
)

var kindNames = map[Kind]string{
	KindSpawn:       "spawn",
	KindJoin:        "join",
	KindLockAcquire: "lock-acquire",
	KindLockRelease: "lock-release",
	KindRead:        "read",
	KindWrite:       "write",
	KindAtomicLoad:  "atomic-load",
	KindAtomicStore: "atomic-store",
	KindAtomicRMW:   "atomic-rmw",
	KindSend:        "send",
	KindRecv:        "recv",
	KindClose:       "close",
	KindNotify:      "notify",
	KindWait:        "wait",
	KindRandom:      "random",
	KindYield:       "yield",
	KindTaskEnd:     "task-end",
	KindRPC:         "rpc",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Returns true if events of this kind change the state of their resource.
// Reads, loads and joins only observe the resource.
func (k Kind) IsMutation() bool {
	switch k {
	case KindRead, KindAtomicLoad, KindJoin, KindRandom, KindYield:
		return false
	}
	return true
}

// Returns true if an event of this kind blocks until one of its partners has happened.
// Such an event can never be reordered before the partner that enabled it.
func (k Kind) IsEnabledByPartner() bool {
	switch k {
	case KindJoin, KindLockAcquire, KindRecv, KindWait:
		return true
	}
	return false
}
