package proxy

import (
	"runtime"

	"github.com/obinnaokechukwu/zcnbridge/callback"
)

// BurnTicket proxies a native burn ticket.
type BurnTicket struct {
	object
}

// Hash reads the ticket hash.
func (t *BurnTicket) Hash() (string, error) { return t.str("hash") }

// Nonce reads the ticket nonce.
func (t *BurnTicket) Nonce() (int64, error) { return t.int64("nonce") }

// Ticket reads both fields into a Go value.
func (t *BurnTicket) Ticket() (callback.BurnTicket, error) {
	hash, err := t.Hash()
	if err != nil {
		return callback.BurnTicket{}, err
	}
	nonce, err := t.Nonce()
	if err != nil {
		return callback.BurnTicket{}, err
	}
	return callback.BurnTicket{Hash: hash, Nonce: nonce}, nil
}

// Release drops the native reference. Later calls do nothing.
func (t *BurnTicket) Release() error {
	runtime.SetFinalizer(t, nil)
	return t.release()
}

// ClientDetails is a copied-out client record.
type ClientDetails struct {
	ID           string `json:"id"`
	Version      string `json:"version"`
	CreationDate int64  `json:"creation_date"`
	PublicKey    string `json:"public_key"`
}

// ClientResponse proxies a native client details response.
type ClientResponse struct {
	object
}

func (c *ClientResponse) ID() (string, error)          { return c.str("id") }
func (c *ClientResponse) Version() (string, error)     { return c.str("version") }
func (c *ClientResponse) CreationDate() (int64, error) { return c.int64("creation_date") }
func (c *ClientResponse) PublicKey() (string, error)   { return c.str("public_key") }

// Details reads every field.
func (c *ClientResponse) Details() (ClientDetails, error) {
	var d ClientDetails
	var err error
	if d.ID, err = c.ID(); err != nil {
		return ClientDetails{}, err
	}
	if d.Version, err = c.Version(); err != nil {
		return ClientDetails{}, err
	}
	if d.CreationDate, err = c.CreationDate(); err != nil {
		return ClientDetails{}, err
	}
	if d.PublicKey, err = c.PublicKey(); err != nil {
		return ClientDetails{}, err
	}
	return d, nil
}

// Release drops the native reference. Later calls do nothing.
func (c *ClientResponse) Release() error {
	runtime.SetFinalizer(c, nil)
	return c.release()
}
