package chat

import (
	"net"
	"sync"
)

// conn wraps one accepted socket. Every record write goes through the
// write mutex so a push never interleaves with a response.
type conn struct {
	id int64
	nc net.Conn

	writeMu sync.Mutex
}

func (c *conn) ID() int64 { return c.id }

// Push writes a server-initiated record. Delivery failures are
// swallowed; persisted history is authoritative and the read loop
// notices a dead socket on its own.
func (c *conn) Push(record string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.nc.Write([]byte(record + "\r\n"))
}

// reply writes a response record and reports the write error so the
// worker can tear down on a broken socket.
func (c *conn) reply(record string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.nc.Write([]byte(record + "\r\n"))
	return err
}
