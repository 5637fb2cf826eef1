/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package msgs holds the replica messages produced by the clients ledger and
// their binary encoding.
package msgs

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ClientReplyMsgType identifies an encoded ClientReplyMsg. A zero type marks
// an empty buffer.
const ClientReplyMsgType uint16 = 0x00c9

// ClientReplyHeaderSize is the size of the fixed part of an encoded reply.
//
//	u16 msgType | u16 currentPrimaryID | u64 reqSeqNum | u32 result |
//	u32 replicaSpecificInfoLength | u32 replyLength
const ClientReplyHeaderSize = 2 + 2 + 8 + 4 + 4 + 4

// ClientReplyMsg is the reply a replica sends back to a client for an
// executed request.
type ClientReplyMsg struct {
	// ClientID is the destination of the reply. It is not part of the
	// encoding.
	ClientID         uint16
	ReqSeqNum        uint64
	CurrentPrimaryID uint16
	Result           uint32
	// ReplicaSpecificInfoLength is the number of trailing bytes of Reply
	// that differ between replicas.
	ReplicaSpecificInfoLength uint32
	Reply                     []byte
}

// Size is the length of the encoded message.
func (m *ClientReplyMsg) Size() uint32 {
	return ClientReplyHeaderSize + uint32(len(m.Reply))
}

// ReplicaSpecificInfo returns the replica specific tail of the reply.
func (m *ClientReplyMsg) ReplicaSpecificInfo() []byte {
	return m.Reply[uint32(len(m.Reply))-m.ReplicaSpecificInfoLength:]
}

// CommonReply returns the part of the reply every correct replica agrees on.
func (m *ClientReplyMsg) CommonReply() []byte {
	return m.Reply[:uint32(len(m.Reply))-m.ReplicaSpecificInfoLength]
}

func (m *ClientReplyMsg) validate() error {
	if m.ReplicaSpecificInfoLength > uint32(len(m.Reply)) {
		return errors.Errorf("replica specific info length %d exceeds reply length %d", m.ReplicaSpecificInfoLength, len(m.Reply))
	}
	return nil
}

// MarshalBinary encodes the message.
func (m *ClientReplyMsg) MarshalBinary() ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, m.Size())
	binary.BigEndian.PutUint16(buf[0:], ClientReplyMsgType)
	binary.BigEndian.PutUint16(buf[2:], m.CurrentPrimaryID)
	binary.BigEndian.PutUint64(buf[4:], m.ReqSeqNum)
	binary.BigEndian.PutUint32(buf[12:], m.Result)
	binary.BigEndian.PutUint32(buf[16:], m.ReplicaSpecificInfoLength)
	binary.BigEndian.PutUint32(buf[20:], uint32(len(m.Reply)))
	copy(buf[ClientReplyHeaderSize:], m.Reply)
	return buf, nil
}

// UnmarshalBinary decodes a message produced by MarshalBinary. Bytes past the
// encoded reply are ignored so that zero padded pages can be decoded
// directly. ClientID is left untouched.
func (m *ClientReplyMsg) UnmarshalBinary(data []byte) error {
	if len(data) < ClientReplyHeaderSize {
		return errors.Errorf("client reply of %d bytes is shorter than its %d byte header", len(data), ClientReplyHeaderSize)
	}
	if msgType := binary.BigEndian.Uint16(data[0:]); msgType != ClientReplyMsgType {
		return errors.Errorf("unexpected message type %d, expected client reply", msgType)
	}

	replyLength := binary.BigEndian.Uint32(data[20:])
	if uint64(replyLength) > uint64(len(data)-ClientReplyHeaderSize) {
		return errors.Errorf("client reply length %d exceeds the %d available bytes", replyLength, len(data)-ClientReplyHeaderSize)
	}

	m.CurrentPrimaryID = binary.BigEndian.Uint16(data[2:])
	m.ReqSeqNum = binary.BigEndian.Uint64(data[4:])
	m.Result = binary.BigEndian.Uint32(data[12:])
	m.ReplicaSpecificInfoLength = binary.BigEndian.Uint32(data[16:])
	m.Reply = append([]byte(nil), data[ClientReplyHeaderSize:ClientReplyHeaderSize+replyLength]...)

	return m.validate()
}

// IsEmptyReply reports whether data holds no encoded message, as is the
// case for a page that was never written.
func IsEmptyReply(data []byte) bool {
	return len(data) < 2 || binary.BigEndian.Uint16(data) == 0
}
