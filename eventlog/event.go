// Package eventlog records SMTP protocol events as a stream of MessagePack
// frames, one map per event.
package eventlog

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/tinylib/msgp/msgp"

	"github.com/synqronlabs/wren/address"
)

// Kind identifies the protocol event an Event records.
type Kind uint8

const (
	KindConnect Kind = iota + 1
	KindDomain
	KindSender
	KindRecipient
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindDomain:
		return "domain"
	case KindSender:
		return "sender"
	case KindRecipient:
		return "recipient"
	case KindMessage:
		return "message"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Event is one frame of the log. Only the fields of its kind are set:
// Remote for KindConnect, Domain for KindDomain, Mailbox for KindSender
// (nil for the null sender) and KindRecipient, Size for KindMessage.
type Event struct {
	Conn    string
	Kind    Kind
	Time    time.Time
	Remote  netip.Addr
	Domain  string
	Mailbox *address.Mailbox
	Size    int64
}

var (
	_ msgp.Encodable = (*Event)(nil)
	_ msgp.Decodable = (*Event)(nil)
)

// EncodeMsg implements msgp.Encodable.
func (e *Event) EncodeMsg(en *msgp.Writer) error {
	if err := en.WriteMapHeader(7); err != nil {
		return err
	}
	if err := en.WriteString("conn"); err != nil {
		return err
	}
	if err := en.WriteString(e.Conn); err != nil {
		return msgp.WrapError(err, "Conn")
	}
	if err := en.WriteString("kind"); err != nil {
		return err
	}
	if err := en.WriteUint8(uint8(e.Kind)); err != nil {
		return msgp.WrapError(err, "Kind")
	}
	if err := en.WriteString("time"); err != nil {
		return err
	}
	if err := en.WriteTime(e.Time); err != nil {
		return msgp.WrapError(err, "Time")
	}
	if err := en.WriteString("remote"); err != nil {
		return err
	}
	var remote []byte
	if e.Remote.IsValid() {
		remote = e.Remote.AsSlice()
	}
	if err := en.WriteBytes(remote); err != nil {
		return msgp.WrapError(err, "Remote")
	}
	if err := en.WriteString("domain"); err != nil {
		return err
	}
	if err := en.WriteString(e.Domain); err != nil {
		return msgp.WrapError(err, "Domain")
	}
	if err := en.WriteString("mailbox"); err != nil {
		return err
	}
	if e.Mailbox == nil {
		if err := en.WriteNil(); err != nil {
			return msgp.WrapError(err, "Mailbox")
		}
	} else if err := e.Mailbox.EncodeMsg(en); err != nil {
		return msgp.WrapError(err, "Mailbox")
	}
	if err := en.WriteString("size"); err != nil {
		return err
	}
	if err := en.WriteInt64(e.Size); err != nil {
		return msgp.WrapError(err, "Size")
	}
	return nil
}

// DecodeMsg implements msgp.Decodable. Unknown keys are skipped.
func (e *Event) DecodeMsg(dc *msgp.Reader) error {
	sz, err := dc.ReadMapHeader()
	if err != nil {
		return err
	}
	var out Event
	for ; sz > 0; sz-- {
		field, err := dc.ReadMapKeyPtr()
		if err != nil {
			return err
		}
		switch string(field) {
		case "conn":
			if out.Conn, err = dc.ReadString(); err != nil {
				return msgp.WrapError(err, "Conn")
			}
		case "kind":
			k, err := dc.ReadUint8()
			if err != nil {
				return msgp.WrapError(err, "Kind")
			}
			out.Kind = Kind(k)
		case "time":
			if out.Time, err = dc.ReadTime(); err != nil {
				return msgp.WrapError(err, "Time")
			}
		case "remote":
			raw, err := dc.ReadBytes(nil)
			if err != nil {
				return msgp.WrapError(err, "Remote")
			}
			if len(raw) > 0 {
				ip, ok := netip.AddrFromSlice(raw)
				if !ok {
					return msgp.WrapError(fmt.Errorf("invalid address length %d", len(raw)), "Remote")
				}
				out.Remote = ip
			}
		case "domain":
			if out.Domain, err = dc.ReadString(); err != nil {
				return msgp.WrapError(err, "Domain")
			}
		case "mailbox":
			if dc.IsNil() {
				if err := dc.ReadNil(); err != nil {
					return msgp.WrapError(err, "Mailbox")
				}
				continue
			}
			out.Mailbox = new(address.Mailbox)
			if err := out.Mailbox.DecodeMsg(dc); err != nil {
				return msgp.WrapError(err, "Mailbox")
			}
		case "size":
			if out.Size, err = dc.ReadInt64(); err != nil {
				return msgp.WrapError(err, "Size")
			}
		default:
			if err := dc.Skip(); err != nil {
				return err
			}
		}
	}
	*e = out
	return nil
}
