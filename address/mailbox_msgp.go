package address

import (
	"fmt"
	"net/netip"

	"github.com/tinylib/msgp/msgp"
)

// Mailbox is encoded as a MessagePack map with the keys "local" and either
// "domain" (string) or "ip" (4 or 16 raw bytes).

var (
	_ msgp.Marshaler   = Mailbox{}
	_ msgp.Unmarshaler = (*Mailbox)(nil)
	_ msgp.Encodable   = Mailbox{}
	_ msgp.Decodable   = (*Mailbox)(nil)
	_ msgp.Sizer       = Mailbox{}
)

// MarshalMsg implements msgp.Marshaler.
func (m Mailbox) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, m.Msgsize())
	o = msgp.AppendMapHeader(o, 2)
	o = msgp.AppendString(o, "local")
	o = msgp.AppendString(o, m.localPart)
	if m.foreignPart.IsIP() {
		o = msgp.AppendString(o, "ip")
		o = msgp.AppendBytes(o, m.foreignPart.ip.AsSlice())
	} else {
		o = msgp.AppendString(o, "domain")
		o = msgp.AppendString(o, m.foreignPart.domain)
	}
	return o, nil
}

// UnmarshalMsg implements msgp.Unmarshaler.
func (m *Mailbox) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	var out Mailbox
	for ; sz > 0; sz-- {
		var field []byte
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			return bts, err
		}
		switch string(field) {
		case "local":
			out.localPart, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				return bts, msgp.WrapError(err, "local")
			}
		case "domain":
			out.foreignPart.domain, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				return bts, msgp.WrapError(err, "domain")
			}
		case "ip":
			var raw []byte
			raw, bts, err = msgp.ReadBytesZC(bts)
			if err != nil {
				return bts, msgp.WrapError(err, "ip")
			}
			ip, ok := netip.AddrFromSlice(raw)
			if !ok {
				return bts, msgp.WrapError(fmt.Errorf("invalid address length %d", len(raw)), "ip")
			}
			out.foreignPart.ip = ip
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				return bts, err
			}
		}
	}
	*m = out
	return bts, nil
}

// EncodeMsg implements msgp.Encodable.
func (m Mailbox) EncodeMsg(en *msgp.Writer) error {
	if err := en.WriteMapHeader(2); err != nil {
		return err
	}
	if err := en.WriteString("local"); err != nil {
		return err
	}
	if err := en.WriteString(m.localPart); err != nil {
		return msgp.WrapError(err, "local")
	}
	if m.foreignPart.IsIP() {
		if err := en.WriteString("ip"); err != nil {
			return err
		}
		if err := en.WriteBytes(m.foreignPart.ip.AsSlice()); err != nil {
			return msgp.WrapError(err, "ip")
		}
		return nil
	}
	if err := en.WriteString("domain"); err != nil {
		return err
	}
	if err := en.WriteString(m.foreignPart.domain); err != nil {
		return msgp.WrapError(err, "domain")
	}
	return nil
}

// DecodeMsg implements msgp.Decodable.
func (m *Mailbox) DecodeMsg(dc *msgp.Reader) error {
	sz, err := dc.ReadMapHeader()
	if err != nil {
		return err
	}
	var out Mailbox
	for ; sz > 0; sz-- {
		field, err := dc.ReadMapKeyPtr()
		if err != nil {
			return err
		}
		switch string(field) {
		case "local":
			if out.localPart, err = dc.ReadString(); err != nil {
				return msgp.WrapError(err, "local")
			}
		case "domain":
			if out.foreignPart.domain, err = dc.ReadString(); err != nil {
				return msgp.WrapError(err, "domain")
			}
		case "ip":
			raw, err := dc.ReadBytes(nil)
			if err != nil {
				return msgp.WrapError(err, "ip")
			}
			ip, ok := netip.AddrFromSlice(raw)
			if !ok {
				return msgp.WrapError(fmt.Errorf("invalid address length %d", len(raw)), "ip")
			}
			out.foreignPart.ip = ip
		default:
			if err := dc.Skip(); err != nil {
				return err
			}
		}
	}
	*m = out
	return nil
}

// Msgsize returns an upper bound of the encoded size of m.
func (m Mailbox) Msgsize() int {
	return msgp.MapHeaderSize +
		msgp.StringPrefixSize + len("local") + msgp.StringPrefixSize + len(m.localPart) +
		msgp.StringPrefixSize + len("domain") + msgp.StringPrefixSize + len(m.foreignPart.domain) +
		msgp.BytesPrefixSize + 16
}
