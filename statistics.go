package oren

import (
	"fmt"
	"time"
)

// Statistics is a snapshot of the transport counters of a Client.
//
// All counters are monotonically non-decreasing for the lifetime of the
// Client, including across Logout/Login cycles. Ping is the most recent RTT
// sample and is the only field that can go down.
type Statistics struct {
	Ping       time.Duration // last measured round-trip time
	Generate   uint64        // bytes submitted to SendData
	SendData   uint64        // bytes delivered
	RecvData   uint64        // bytes received (first arrivals only)
	SendPacket uint64        // transmission attempts
	RecvPacket uint64        // frames received, duplicates included
	SendRetry  uint64        // retransmissions
	RecvRetry  uint64        // frames received through a retransmission
	SendLost   uint64        // sends that exhausted their retry budget
	RecvLost   uint64        // frames reported missing by the transport
	Duplicate  uint64        // duplicate frames dropped
}

func (s Statistics) String() string {
	return fmt.Sprintf("Statistics{ping=%v generate=%d send=%d/%dpkt recv=%d/%dpkt retry=%d/%d lost=%d/%d dup=%d}",
		s.Ping, s.Generate, s.SendData, s.SendPacket, s.RecvData, s.RecvPacket,
		s.SendRetry, s.RecvRetry, s.SendLost, s.RecvLost, s.Duplicate)
}

// statsTracker accumulates Statistics. It has no lock of its own: every
// method is called with the owning Client's mutex held.
type statsTracker struct {
	s Statistics
}

func (t *statsTracker) snapshot() Statistics {
	return t.s
}

func (t *statsTracker) recordPing(rtt time.Duration) {
	t.s.Ping = rtt
}

func (t *statsTracker) recordGenerated(size int) {
	t.s.Generate += uint64(size)
}

// recordAttempt counts one transmission attempt; attempt is 1-based.
func (t *statsTracker) recordAttempt(attempt int) {
	t.s.SendPacket++
	if attempt > 1 {
		t.s.SendRetry++
	}
}

func (t *statsTracker) recordDelivered(size int) {
	t.s.SendData += uint64(size)
}

func (t *statsTracker) recordLost() {
	t.s.SendLost++
}

// recordArrival counts an inbound frame and reports whether it should be
// forwarded (false for duplicates).
func (t *statsTracker) recordArrival(f DataFrame) bool {
	t.s.RecvPacket++
	t.s.RecvLost += uint64(f.Lost)
	if f.Retransmit {
		t.s.RecvRetry++
	}
	if f.Duplicate {
		t.s.Duplicate++
		return false
	}
	t.s.RecvData += uint64(len(f.Payload))
	return true
}
