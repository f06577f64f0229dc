package models

import (
	"errors"
	"testing"
)

func validRequest() SlipSyncRequest {
	return SlipSyncRequest{
		UserID:   "u1",
		DeviceID: "phone",
		Changes: []PickChange{
			{PickID: "p1", Action: ChangeActionAdd, Timestamp: 1000},
		},
		Slip: []SlipPick{
			{PickID: "p1", Confidence: 80, UpdatedAt: 1000},
		},
		Timestamp: 1000,
	}
}

func TestSlipSyncRequestValidate(t *testing.T) {
	if err := validRequest().Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*SlipSyncRequest)
	}{
		{"missing userId", func(r *SlipSyncRequest) { r.UserID = "" }},
		{"missing deviceId", func(r *SlipSyncRequest) { r.DeviceID = "" }},
		{"zero timestamp", func(r *SlipSyncRequest) { r.Timestamp = 0 }},
		{"negative timestamp", func(r *SlipSyncRequest) { r.Timestamp = -5 }},
		{"change missing pickId", func(r *SlipSyncRequest) { r.Changes[0].PickID = "" }},
		{"change unknown action", func(r *SlipSyncRequest) { r.Changes[0].Action = "replace" }},
		{"change zero timestamp", func(r *SlipSyncRequest) { r.Changes[0].Timestamp = 0 }},
		{"slip entry missing pickId", func(r *SlipSyncRequest) { r.Slip[0].PickID = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)

			err := req.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidSync) {
				t.Errorf("error %v should wrap ErrInvalidSync", err)
			}
		})
	}
}

func TestSlipSyncRequestValidateEmptyCollections(t *testing.T) {
	// A sync with no changes and no slip entries is a device check-in and
	// must be accepted.
	req := SlipSyncRequest{UserID: "u1", DeviceID: "phone", Timestamp: 1000}
	if err := req.Validate(); err != nil {
		t.Fatalf("check-in request rejected: %v", err)
	}
}
