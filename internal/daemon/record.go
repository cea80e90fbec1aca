package daemon

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/s2p-go/s2pd/internal/executor"
)

// record.go implements the "structured binary encoding" spec.md §6
// deliberately leaves unspecified (protobuf is explicitly out of scope).
// The layout is a flat, length-prefixed field sequence: every string is a
// uint16 length prefix followed by UTF-8 bytes, every map is a uint16
// count followed by key/value string pairs.

func putString(buf *bytes.Buffer, s string) {
	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], uint16(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

func getString(r *bytes.Reader) (string, error) {
	var n [2]byte
	if _, err := r.Read(n[:]); err != nil {
		return "", err
	}
	length := binary.LittleEndian.Uint16(n[:])
	buf := make([]byte, length)
	if _, err := r.Read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// EncodeCommand serializes one executor.Command for the wire.
func EncodeCommand(c executor.Command) []byte {
	var buf bytes.Buffer
	putString(&buf, string(c.Operation))
	binary.Write(&buf, binary.LittleEndian, int32(c.ID))
	binary.Write(&buf, binary.LittleEndian, int32(c.Lun))
	putString(&buf, c.DeviceType)
	putString(&buf, c.Filename)
	binary.Write(&buf, binary.LittleEndian, c.BlockSize)
	binary.Write(&buf, binary.LittleEndian, c.BlockCount)
	binary.Write(&buf, binary.LittleEndian, uint16(len(c.Params)))
	for k, v := range c.Params {
		putString(&buf, k)
		putString(&buf, v)
	}
	return buf.Bytes()
}

// DecodeCommand parses one executor.Command from the wire.
func DecodeCommand(data []byte) (executor.Command, error) {
	r := bytes.NewReader(data)
	var c executor.Command
	op, err := getString(r)
	if err != nil {
		return c, fmt.Errorf("daemon: decode operation: %w", err)
	}
	c.Operation = executor.Operation(op)

	var id, lun int32
	if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
		return c, err
	}
	if err := binary.Read(r, binary.LittleEndian, &lun); err != nil {
		return c, err
	}
	c.ID, c.Lun = int(id), int(lun)

	if c.DeviceType, err = getString(r); err != nil {
		return c, err
	}
	if c.Filename, err = getString(r); err != nil {
		return c, err
	}
	if err := binary.Read(r, binary.LittleEndian, &c.BlockSize); err != nil {
		return c, err
	}
	if err := binary.Read(r, binary.LittleEndian, &c.BlockCount); err != nil {
		return c, err
	}
	var paramCount uint16
	if err := binary.Read(r, binary.LittleEndian, &paramCount); err != nil {
		return c, err
	}
	c.Params = map[string]string{}
	for i := 0; i < int(paramCount); i++ {
		k, err := getString(r)
		if err != nil {
			return c, err
		}
		v, err := getString(r)
		if err != nil {
			return c, err
		}
		c.Params[k] = v
	}
	return c, nil
}

// EncodeReply serializes an executor.Reply for the wire.
func EncodeReply(r executor.Reply) []byte {
	var buf bytes.Buffer
	status := byte(0)
	if r.Status {
		status = 1
	}
	buf.WriteByte(status)
	putString(&buf, r.Message)
	binary.Write(&buf, binary.LittleEndian, uint16(len(r.Devices)))
	for _, d := range r.Devices {
		binary.Write(&buf, binary.LittleEndian, int32(d.ID))
		binary.Write(&buf, binary.LittleEndian, int32(d.Lun))
		putString(&buf, d.Type)
		putString(&buf, d.Vendor)
		putString(&buf, d.Product)
		putString(&buf, d.Filename)
		binary.Write(&buf, binary.LittleEndian, d.BlockSize)
		binary.Write(&buf, binary.LittleEndian, d.BlockCount)
	}
	return buf.Bytes()
}

// DecodeReply parses one executor.Reply from the wire, the control
// client's counterpart to EncodeReply.
func DecodeReply(data []byte) (executor.Reply, error) {
	r := bytes.NewReader(data)
	var reply executor.Reply
	status, err := r.ReadByte()
	if err != nil {
		return reply, err
	}
	reply.Status = status != 0
	if reply.Message, err = getString(r); err != nil {
		return reply, err
	}
	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return reply, err
	}
	for i := 0; i < int(count); i++ {
		var d executor.DeviceInfo
		var id, lun int32
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return reply, err
		}
		if err := binary.Read(r, binary.LittleEndian, &lun); err != nil {
			return reply, err
		}
		d.ID, d.Lun = int(id), int(lun)
		if d.Type, err = getString(r); err != nil {
			return reply, err
		}
		if d.Vendor, err = getString(r); err != nil {
			return reply, err
		}
		if d.Product, err = getString(r); err != nil {
			return reply, err
		}
		if d.Filename, err = getString(r); err != nil {
			return reply, err
		}
		if err := binary.Read(r, binary.LittleEndian, &d.BlockSize); err != nil {
			return reply, err
		}
		if err := binary.Read(r, binary.LittleEndian, &d.BlockCount); err != nil {
			return reply, err
		}
		reply.Devices = append(reply.Devices, d)
	}
	return reply, nil
}
