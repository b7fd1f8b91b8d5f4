package proxy

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/obinnaokechukwu/zcnbridge/callback"
	"github.com/obinnaokechukwu/zcnbridge/marshal"
)

// Class names of the non-callback proxies.
const (
	ClassBurnTicket        = "BurnTicket"
	ClassGetClientResponse = "GetClientResponse"
)

// FieldDesc describes one native field of a proxied class.
type FieldDesc struct {
	Name string
	Type marshal.FieldType
}

// Descriptor describes a proxied class: its native fields, or for callback
// stubs the completion kind it forwards.
type Descriptor struct {
	Name   string
	Fields []FieldDesc
	Kind   callback.Kind

	construct func(f *Factory, ref Ref) any
}

var (
	descOnce    sync.Once
	descriptors atomic.Pointer[map[string]*Descriptor]
)

// InitDescriptors builds the process-wide descriptor registry. Only the first
// call has any effect. Lookups and construction fail until it has run.
func InitDescriptors() {
	descOnce.Do(func() {
		m := map[string]*Descriptor{
			ClassBurnTicket: {
				Name:   ClassBurnTicket,
				Fields: []FieldDesc{{"hash", marshal.FieldString}, {"nonce", marshal.FieldInt}},
				construct: func(f *Factory, ref Ref) any {
					return f.NewBurnTicket(ref)
				},
			},
			ClassGetClientResponse: {
				Name: ClassGetClientResponse,
				Fields: []FieldDesc{
					{"id", marshal.FieldString},
					{"version", marshal.FieldString},
					{"creation_date", marshal.FieldInt},
					{"public_key", marshal.FieldString},
				},
				construct: func(f *Factory, ref Ref) any {
					return f.NewClientResponse(ref)
				},
			},
		}
		for _, kind := range callback.Kinds {
			kind := kind
			name := StubClass(kind)
			m[name] = &Descriptor{
				Name: name,
				Kind: kind,
				construct: func(f *Factory, ref Ref) any {
					return f.newStub(kind, ref)
				},
			}
		}
		descriptors.Store(&m)
	})
}

// Lookup returns the descriptor of class name.
func Lookup(name string) (*Descriptor, error) {
	m := descriptors.Load()
	if m == nil {
		return nil, ErrNotInitialized
	}
	d, ok := (*m)[name]
	if !ok {
		return nil, ErrUnknownClass
	}
	return d, nil
}

// Classes lists every registered class name in sorted order.
func Classes() []string {
	m := descriptors.Load()
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(*m))
	for name := range *m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StubClass returns the class name of the callback stub for kind.
func StubClass(kind callback.Kind) string {
	return kind.String() + "Callback"
}
