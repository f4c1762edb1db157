package model

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2025-09-05 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func window(start, end string) TimeWindow {
	return TimeWindow{Date: "2025-09-05", Start: at(start), End: at(end)}
}

func TestTimeWindow_Overlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b TimeWindow
		want bool
	}{
		{"partial overlap", window("14:30", "15:30"), window("14:00", "15:00"), true},
		{"identical", window("14:00", "15:00"), window("14:00", "15:00"), true},
		{"contained", window("14:15", "14:45"), window("14:00", "15:00"), true},
		{"containing", window("13:00", "16:00"), window("14:00", "15:00"), true},
		{"touching after", window("15:00", "16:00"), window("14:00", "15:00"), false},
		{"touching before", window("13:00", "14:00"), window("14:00", "15:00"), false},
		{"disjoint", window("09:00", "10:00"), window("14:00", "15:00"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap must be symmetric")
		})
	}
}

func TestTimeWindow_DurationAndString(t *testing.T) {
	w := window("14:00", "15:30")
	assert.Equal(t, 90*time.Minute, w.Duration())
	assert.Equal(t, "2025-09-05 [14:00, 15:30)", w.String())
}

func TestCommitment_IsOccupying(t *testing.T) {
	for status, want := range map[string]bool{
		CommitmentStatusPending:    true,
		CommitmentStatusConfirmed:  true,
		CommitmentStatusInProgress: true,
		CommitmentStatusCompleted:  false,
		CommitmentStatusCancelled:  false,
		CommitmentStatusNoShow:     false,
	} {
		c := &Commitment{Status: status}
		assert.Equal(t, want, c.IsOccupying(), status)
	}
}

func TestBookingRequest_Tags(t *testing.T) {
	validate := validator.New()
	valid := BookingRequest{
		OwnerID:     "owner-1",
		RequesterID: "student-1",
		OfferingID:  "lesson-60",
		Date:        "2025-09-05",
		StartTime:   "14:00",
		EndTime:     "15:00",
		Modality:    ModalityOnline,
	}

	tests := []struct {
		name    string
		mutate  func(r *BookingRequest)
		wantErr bool
	}{
		{"valid", func(r *BookingRequest) {}, false},
		{"missing owner", func(r *BookingRequest) { r.OwnerID = "" }, true},
		{"bad date", func(r *BookingRequest) { r.Date = "05/09/2025" }, true},
		{"bad time", func(r *BookingRequest) { r.StartTime = "2pm" }, true},
		{"unknown modality", func(r *BookingRequest) { r.Modality = "carrier_pigeon" }, true},
		{"in person", func(r *BookingRequest) { r.Modality = ModalityInPerson }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := validate.Struct(req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBookingTransaction_IsExpired(t *testing.T) {
	now := at("14:00")
	tx := &BookingTransaction{ExpiresAt: now.Add(time.Second)}
	assert.False(t, tx.IsExpired(now))
	assert.True(t, tx.IsExpired(now.Add(time.Second)))
}
