// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2017-present Datadog, Inc.

// Package netlinksrc implements the process-event intake source (spec.md
// §4.3, §6): a NETLINK_CONNECTOR socket subscribed to the CN_IDX_PROC
// multicast group, carrying fork/exec/exit notifications from the
// kernel's process connector.
package netlinksrc

import (
	"encoding/binary"
	"errors"

	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"github.com/DataDog/restuned/pkg/types"
)

const (
	cnIdxProc uint32 = 0x1 // CN_IDX_PROC
	cnValProc uint32 = 0x1 // CN_VAL_PROC

	procCnMcastListen uint32 = 1 // PROC_CN_MCAST_LISTEN
	procCnMcastIgnore uint32 = 2 // PROC_CN_MCAST_IGNORE

	procEventExec uint32 = 0x00000002
	procEventExit uint32 = 0x80000000

	cnMsgHeaderLen   = 20 // cb_id(8) + seq(4) + ack(4) + len(2) + flags(2)
	procEventPreable = 16 // what(4) + cpu(4) + timestamp_ns(8)
)

// Source is a single NETLINK_CONNECTOR/CN_IDX_PROC socket. Not safe for
// concurrent use by more than one reader, matching spec.md §4.3's
// single netlink-reader-thread model.
type Source struct {
	conn *netlink.Conn
	seq  uint32
}

// Open dials the connector socket, joins the proc-event multicast
// group, and sends the PROC_CN_MCAST_LISTEN enable control message.
func Open() (*Source, error) {
	conn, err := netlink.Dial(unix.NETLINK_CONNECTOR, nil)
	if err != nil {
		return nil, err
	}
	if err := conn.JoinGroup(cnIdxProc); err != nil {
		conn.Close()
		return nil, err
	}
	s := &Source{conn: conn}
	if err := s.sendControl(procCnMcastListen); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close sends the symmetric PROC_CN_MCAST_IGNORE disable before closing
// the socket, mirroring the enable/disable pair the original process
// connector client issues.
func (s *Source) Close() error {
	_ = s.sendControl(procCnMcastIgnore)
	return s.conn.Close()
}

func (s *Source) sendControl(op uint32) error {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, op)
	return s.sendCnMsg(payload)
}

func (s *Source) sendCnMsg(payload []byte) error {
	s.seq++
	buf := make([]byte, cnMsgHeaderLen+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], cnIdxProc)
	binary.LittleEndian.PutUint32(buf[4:8], cnValProc)
	binary.LittleEndian.PutUint32(buf[8:12], s.seq)
	binary.LittleEndian.PutUint32(buf[12:16], 0) // ack
	binary.LittleEndian.PutUint16(buf[16:18], uint16(len(payload)))
	binary.LittleEndian.PutUint16(buf[18:20], 0) // flags
	copy(buf[cnMsgHeaderLen:], payload)

	msg := netlink.Message{
		Header: netlink.Header{
			Type: netlink.HeaderType(unix.NLMSG_DONE),
		},
		Data: buf,
	}
	_, err := s.conn.Send(msg)
	return err
}

// Receive blocks for the next batch of process-connector messages and
// decodes them into ProcEvents, dropping anything that is not a
// recognized exec/exit notification. A recv interrupted by EINTR
// returns a nil, nil pair so the caller retries, per spec.md §4.3
// failure handling; any other error means the listener should exit.
func (s *Source) Receive() ([]types.ProcEvent, error) {
	msgs, err := s.conn.Receive()
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, err
	}
	var out []types.ProcEvent
	for _, m := range msgs {
		if ev, ok := parseProcEvent(m.Data); ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func parseProcEvent(data []byte) (types.ProcEvent, bool) {
	if len(data) < cnMsgHeaderLen+procEventPreable {
		return types.ProcEvent{}, false
	}
	idx := binary.LittleEndian.Uint32(data[0:4])
	val := binary.LittleEndian.Uint32(data[4:8])
	if idx != cnIdxProc || val != cnValProc {
		return types.ProcEvent{}, false
	}

	body := data[cnMsgHeaderLen:]
	what := binary.LittleEndian.Uint32(body[0:4])

	// Past the what/cpu/timestamp preamble, both exec_proc_event and
	// exit_proc_event start with process_pid then process_tgid.
	union := body[procEventPreable:]
	if len(union) < 8 {
		return types.ProcEvent{}, false
	}
	pid := int32(binary.LittleEndian.Uint32(union[0:4]))
	tgid := int32(binary.LittleEndian.Uint32(union[4:8]))

	switch what {
	case procEventExec:
		return types.ProcEvent{Pid: pid, Tgid: tgid, Kind: types.ProcEventAppOpen}, true
	case procEventExit:
		return types.ProcEvent{Pid: pid, Tgid: tgid, Kind: types.ProcEventAppClose}, true
	default:
		return types.ProcEvent{}, false
	}
}
