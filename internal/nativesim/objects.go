package nativesim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/obinnaokechukwu/zcnbridge/callback"
	"github.com/obinnaokechukwu/zcnbridge/marshal"
	"github.com/obinnaokechukwu/zcnbridge/proxy"
)

// ErrNoObject is returned for a reference that was never issued or was released.
var ErrNoObject = errors.New("nativesim: no such object")

// Forwarded is a completion handed to a native callback object.
type Forwarded struct {
	Ref  proxy.Ref
	Kind callback.Kind
	Args marshal.Args
}

type nativeObject struct {
	strs map[string]string
	ints map[string]int64
}

// Objects is a native object table. It implements proxy.Backend.
type Objects struct {
	mu        sync.Mutex
	next      proxy.Ref
	live      map[proxy.Ref]*nativeObject
	released  map[proxy.Ref]int
	forwarded []Forwarded
}

// NewObjects returns an empty object table.
func NewObjects() *Objects {
	return &Objects{live: map[proxy.Ref]*nativeObject{}, released: map[proxy.Ref]int{}}
}

// Add stores an object and returns its reference.
func (o *Objects) Add(strs map[string]string, ints map[string]int64) proxy.Ref {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	o.live[o.next] = &nativeObject{strs: strs, ints: ints}
	return o.next
}

// AddBurnTicket stores t as a native burn ticket.
func (o *Objects) AddBurnTicket(t callback.BurnTicket) proxy.Ref {
	return o.Add(map[string]string{"hash": t.Hash}, map[string]int64{"nonce": t.Nonce})
}

// AddCallback stores a native callback object that records forwarded completions.
func (o *Objects) AddCallback() proxy.Ref {
	return o.Add(nil, nil)
}

func (o *Objects) get(ref proxy.Ref) (*nativeObject, error) {
	obj, ok := o.live[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoObject, ref)
	}
	return obj, nil
}

func (o *Objects) ObjectString(ref proxy.Ref, field string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	obj, err := o.get(ref)
	if err != nil {
		return "", err
	}
	v, ok := obj.strs[field]
	if !ok {
		return "", fmt.Errorf("nativesim: object %d has no string field %q", ref, field)
	}
	return v, nil
}

func (o *Objects) ObjectInt64(ref proxy.Ref, field string) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	obj, err := o.get(ref)
	if err != nil {
		return 0, err
	}
	v, ok := obj.ints[field]
	if !ok {
		return 0, fmt.Errorf("nativesim: object %d has no int64 field %q", ref, field)
	}
	return v, nil
}

func (o *Objects) Forward(ref proxy.Ref, env marshal.Envelope) error {
	args, err := marshal.Lift(env)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.get(ref); err != nil {
		return err
	}
	o.forwarded = append(o.forwarded, Forwarded{Ref: ref, Kind: env.Kind, Args: args})
	return nil
}

func (o *Objects) ReleaseObject(ref proxy.Ref) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.released[ref]++
	if _, err := o.get(ref); err != nil {
		return err
	}
	delete(o.live, ref)
	return nil
}

// Live returns the number of unreleased objects.
func (o *Objects) Live() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.live)
}

// Releases returns how many times ref was released.
func (o *Objects) Releases(ref proxy.Ref) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.released[ref]
}

// Forwarded returns the completions forwarded so far.
func (o *Objects) Forwarded() []Forwarded {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Forwarded(nil), o.forwarded...)
}
