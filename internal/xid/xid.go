package xid

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"
)

var counter atomic.Uint32

// New returns a 24 character hex id: 4 bytes of unix seconds, 5 random
// bytes and a 3 byte process counter. Ids sort roughly by creation time.
func New() string {
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(time.Now().Unix()))
	if _, err := rand.Read(buf[4:9]); err != nil {
		binary.BigEndian.PutUint32(buf[4:8], uint32(time.Now().UnixNano()))
	}
	n := counter.Add(1)
	buf[9] = byte(n >> 16)
	buf[10] = byte(n >> 8)
	buf[11] = byte(n)
	return hex.EncodeToString(buf[:])
}

// Valid reports whether id has the shape produced by New.
func Valid(id string) bool {
	if len(id) != 24 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
