package treefs

import "sync"

// The concurrency policy is any sync.Locker. The Dispatcher acquires it on
// entry to every protocol verb and releases it on every exit path, before
// the result reaches the protocol layer. The policy decides what that
// acquisition means.

// Serialize returns the full mutual-exclusion policy: no two dispatch calls
// overlap their resolve-and-invoke windows, so lookups never race concurrent
// tree mutation. This is the default, matching the single-threaded "-s"
// mount option.
func Serialize() sync.Locker {
	return &sync.Mutex{}
}

// NoLock returns the no-isolation policy. Dispatch calls run fully
// concurrently and correctness of concurrent structural changes is the
// node implementations' responsibility.
func NoLock() sync.Locker {
	return noLock{}
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}
