package dispatch

import "runtime"

// Attacher binds the calling execution context to the Go side for the
// duration of one dispatch. Attach is called once per dispatch and the
// returned release function is called when the dispatch returns.
type Attacher interface {
	Attach() (release func(), err error)
}

// AttacherFunc adapts a function to the Attacher interface.
type AttacherFunc func() (func(), error)

func (f AttacherFunc) Attach() (func(), error) { return f() }

// OSThreadAttacher pins the dispatching goroutine to the OS thread that
// entered the gateway until the callback returns. Native threads entering Go
// through a callback already run on their own thread; pinning keeps any
// thread-affine state the callback touches on that thread.
type OSThreadAttacher struct{}

func (OSThreadAttacher) Attach() (func(), error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}

// NoopAttacher does nothing.
type NoopAttacher struct{}

func (NoopAttacher) Attach() (func(), error) { return func() {}, nil }
