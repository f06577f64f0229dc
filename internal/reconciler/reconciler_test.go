package reconciler_test

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-sync/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/reconciler"
	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// fakeSender records messages delivered to one device's connection
type fakeSender struct {
	id   string
	msgs []models.ServerMessage
}

func (f *fakeSender) ID() string { return f.id }

func (f *fakeSender) TrySend(msg models.ServerMessage) bool {
	f.msgs = append(f.msgs, msg)
	return true
}

func newReconciler(capacity int) (*reconciler.Reconciler, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	m := metrics.New(prometheus.NewRegistry())
	return reconciler.New(capacity, clock, m, zerolog.New(io.Discard)), clock
}

func syncRequest(user, device string, ts int64, pickIDs ...string) models.SlipSyncRequest {
	req := models.SlipSyncRequest{
		UserID:    user,
		DeviceID:  device,
		Timestamp: ts,
		Version:   1,
	}
	for _, id := range pickIDs {
		req.Changes = append(req.Changes, models.PickChange{PickID: id, Action: models.ChangeActionAdd, Timestamp: ts})
		req.Slip = append(req.Slip, models.SlipPick{PickID: id, Confidence: 0, UpdatedAt: ts})
	}
	return req
}

func TestSync_AcceptsAndAcknowledges(t *testing.T) {
	r, clock := newReconciler(10)
	phone := &fakeSender{id: "conn-phone"}

	ack, err := r.Sync(phone, syncRequest("u1", "phone", 1000, "p1"))
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if ack.DeviceID != "phone" || ack.Status != "ok" {
		t.Errorf("ack = %+v, want deviceId phone, status ok", ack)
	}
	if ack.SyncTimestamp != clock.Now().UnixMilli() {
		t.Errorf("ack.SyncTimestamp = %d, want server clock %d", ack.SyncTimestamp, clock.Now().UnixMilli())
	}

	history := r.History("u1")
	if len(history) != 1 || history[0].Sequence != 1 {
		t.Fatalf("history = %+v, want one record with sequence 1", history)
	}
}

func TestSync_RejectsMalformedWithoutMutation(t *testing.T) {
	r, _ := newReconciler(10)
	phone := &fakeSender{id: "conn-phone"}

	bad := []models.SlipSyncRequest{
		{DeviceID: "phone", Timestamp: 1000},                 // missing user
		{UserID: "u1", Timestamp: 1000},                      // missing device
		{UserID: "u1", DeviceID: "phone"},                    // missing timestamp
		func() models.SlipSyncRequest {                       // bad change action
			req := syncRequest("u1", "phone", 1000, "p1")
			req.Changes[0].Action = "replace"
			return req
		}(),
		func() models.SlipSyncRequest { // slip pick without id
			req := syncRequest("u1", "phone", 1000, "p1")
			req.Slip[0].PickID = ""
			return req
		}(),
	}

	for i, req := range bad {
		if _, err := r.Sync(phone, req); !errors.Is(err, models.ErrInvalidSync) {
			t.Errorf("case %d: Sync() error = %v, want ErrInvalidSync", i, err)
		}
	}

	if got := r.History("u1"); len(got) != 0 {
		t.Errorf("history after rejected syncs = %+v, want empty", got)
	}
	if got := r.Devices("u1"); len(got) != 0 {
		t.Errorf("devices after rejected syncs = %+v, want empty", got)
	}
}

func TestSync_RebroadcastsToPeersButNeverEchoes(t *testing.T) {
	r, _ := newReconciler(10)
	phone := &fakeSender{id: "conn-phone"}
	laptop := &fakeSender{id: "conn-laptop"}

	// Laptop connects first with an unrelated pick.
	if _, err := r.Sync(laptop, syncRequest("u1", "laptop", 900, "p9")); err != nil {
		t.Fatal(err)
	}
	laptop.msgs = nil

	// Phone adds p1.
	if _, err := r.Sync(phone, syncRequest("u1", "phone", 1000, "p1")); err != nil {
		t.Fatal(err)
	}

	if len(laptop.msgs) != 1 {
		t.Fatalf("laptop received %d messages, want 1", len(laptop.msgs))
	}
	msg := laptop.msgs[0]
	if msg.Type != models.MessageTypeBetSlipSync {
		t.Errorf("message type = %q, want bet_slip_sync", msg.Type)
	}
	payload := msg.Payload.(models.SlipSyncBroadcast)
	if !payload.FromDevice {
		t.Error("rebroadcast must be tagged fromDevice = true")
	}
	if payload.DeviceID != "phone" || len(payload.Slip) != 1 || payload.Slip[0].PickID != "p1" {
		t.Errorf("payload = %+v, want phone's slip carrying p1", payload)
	}

	if len(phone.msgs) != 0 {
		t.Errorf("originating device received %d messages, want no echo", len(phone.msgs))
	}
}

func TestSync_RecordsConflictBetweenDevices(t *testing.T) {
	r, _ := newReconciler(10)
	phone := &fakeSender{id: "conn-phone"}
	laptop := &fakeSender{id: "conn-laptop"}

	r.Sync(phone, syncRequest("u1", "phone", 1000, "p1", "p2"))
	r.Sync(laptop, syncRequest("u1", "laptop", 1005, "p2", "p3"))

	conflicts := r.Conflicts("u1")
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want exactly 1", len(conflicts))
	}

	c := conflicts[0]
	if c.DeviceA != "phone" || c.DeviceB != "laptop" {
		t.Errorf("conflict devices = {%s, %s}, want {phone, laptop}", c.DeviceA, c.DeviceB)
	}
	if diff := cmp.Diff([]string{"p2"}, c.PickIDs); diff != "" {
		t.Errorf("overlapping pick ids mismatch (-want +got):\n%s", diff)
	}
	if c.Resolution != reconciler.ResolutionLastWriteWins {
		t.Errorf("resolution = %q, want %q", c.Resolution, reconciler.ResolutionLastWriteWins)
	}

	// Both conflicting writes were still accepted.
	if len(r.History("u1")) != 2 {
		t.Errorf("history length = %d, want both writes accepted", len(r.History("u1")))
	}
}

func TestSync_NoConflictForSameDeviceOrDisjointPicks(t *testing.T) {
	r, _ := newReconciler(10)
	phone := &fakeSender{id: "conn-phone"}
	laptop := &fakeSender{id: "conn-laptop"}

	// Same device touching the same pick twice is not a conflict.
	r.Sync(phone, syncRequest("u1", "phone", 1000, "p1"))
	r.Sync(phone, syncRequest("u1", "phone", 1001, "p1"))

	// Different device, disjoint picks: not a conflict either.
	r.Sync(laptop, syncRequest("u1", "laptop", 1002, "p5"))

	if got := r.Conflicts("u1"); len(got) != 0 {
		t.Errorf("conflicts = %+v, want none", got)
	}
}

func TestSync_OnlyComparesImmediatelyPrecedingRecord(t *testing.T) {
	r, _ := newReconciler(10)
	phone := &fakeSender{id: "conn-phone"}
	laptop := &fakeSender{id: "conn-laptop"}

	r.Sync(phone, syncRequest("u1", "phone", 1000, "p1"))
	r.Sync(laptop, syncRequest("u1", "laptop", 1001, "p9"))
	// Overlaps with phone's record two entries back, not the previous one.
	r.Sync(laptop, syncRequest("u1", "laptop", 1002, "p1"))

	if got := r.Conflicts("u1"); len(got) != 0 {
		t.Errorf("conflicts = %+v, want none for non-adjacent overlap", got)
	}
}

func TestSync_HistoryIsBoundedFIFO(t *testing.T) {
	r, _ := newReconciler(5)
	phone := &fakeSender{id: "conn-phone"}

	for i := 0; i < 8; i++ {
		r.Sync(phone, syncRequest("u1", "phone", int64(1000+i), "p1"))
	}

	history := r.History("u1")
	if len(history) != 5 {
		t.Fatalf("history length = %d, want capacity 5", len(history))
	}
	if history[0].Sequence != 4 || history[4].Sequence != 8 {
		t.Errorf("history sequences = [%d..%d], want oldest evicted first [4..8]",
			history[0].Sequence, history[4].Sequence)
	}
}

func TestSync_UsersAreIsolated(t *testing.T) {
	r, _ := newReconciler(10)
	phoneU1 := &fakeSender{id: "conn-1"}
	phoneU2 := &fakeSender{id: "conn-2"}

	r.Sync(phoneU1, syncRequest("u1", "phone", 1000, "p1"))
	r.Sync(phoneU2, syncRequest("u2", "phone", 1001, "p1"))

	// Same pick id, different users: no cross-user fan-out or conflict.
	if len(phoneU1.msgs) != 0 || len(phoneU2.msgs) != 0 {
		t.Error("devices of different users must not receive each other's syncs")
	}
	if len(r.Conflicts("u1")) != 0 || len(r.Conflicts("u2")) != 0 {
		t.Error("no conflicts expected across users")
	}
}

func TestDisconnect_MarksStaleAndStopsFanOut(t *testing.T) {
	r, _ := newReconciler(10)
	phone := &fakeSender{id: "conn-phone"}
	laptop := &fakeSender{id: "conn-laptop"}

	r.Sync(laptop, syncRequest("u1", "laptop", 900, "p9"))
	r.Disconnect("u1", "laptop")
	laptop.msgs = nil

	r.Sync(phone, syncRequest("u1", "phone", 1000, "p1"))

	if len(laptop.msgs) != 0 {
		t.Error("stale device must not receive rebroadcasts")
	}

	devices := r.Devices("u1")
	found := false
	for _, d := range devices {
		if d.DeviceID == "laptop" {
			found = true
			if d.Connected() {
				t.Error("disconnected device should report Connected() = false")
			}
		}
	}
	if !found {
		t.Error("disconnect must not delete the device entry")
	}
}

func TestCurrentSlip_MergesHistoryWithLastWriteWins(t *testing.T) {
	r, _ := newReconciler(10)
	phone := &fakeSender{id: "conn-phone"}
	laptop := &fakeSender{id: "conn-laptop"}

	// Phone and laptop both edit p1; the laptop edit is newer.
	r.Sync(phone, syncRequest("u1", "phone", 1000, "p1", "p2"))
	r.Sync(laptop, syncRequest("u1", "laptop", 2000, "p1"))

	slip := r.CurrentSlip("u1")
	if len(slip) != 2 {
		t.Fatalf("merged slip = %+v, want p1 and p2", slip)
	}
	if slip[0].PickID != "p1" || slip[0].UpdatedAt != 2000 {
		t.Errorf("p1 = %+v, want laptop's newer edit (updatedAt 2000)", slip[0])
	}
	if slip[1].PickID != "p2" || slip[1].UpdatedAt != 1000 {
		t.Errorf("p2 = %+v, want phone's edit preserved", slip[1])
	}
}

func TestReap_RemovesOnlyStaleDevices(t *testing.T) {
	r, _ := newReconciler(10)
	phone := &fakeSender{id: "conn-phone"}
	laptop := &fakeSender{id: "conn-laptop"}

	r.Sync(phone, syncRequest("u1", "phone", 1000, "p1"))
	r.Sync(laptop, syncRequest("u1", "laptop", 1001, "p2"))
	r.Disconnect("u1", "laptop")

	if reaped := r.Reap("u1"); reaped != 1 {
		t.Errorf("Reap() = %d, want 1", reaped)
	}

	devices := r.Devices("u1")
	if len(devices) != 1 || devices[0].DeviceID != "phone" {
		t.Errorf("devices after reap = %+v, want only phone", devices)
	}

	// History survives reaping.
	if len(r.History("u1")) != 2 {
		t.Error("reap must not discard history")
	}
}
