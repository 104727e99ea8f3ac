package protocol

import (
	"encoding/json"
	"testing"

	"github.com/Freeeeeet/scheduler_hub/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_WithoutData(t *testing.T) {
	frame, err := Encode(EventRequestInitialData, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"request-initial-data"}`, string(frame))
}

func TestEncode_WithData(t *testing.T) {
	frame, err := Encode(EventModificationRejected, RejectedPayload{Success: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"modification-rejected","data":{"success":true}}`, string(frame))
}

func TestDecode(t *testing.T) {
	env, err := Decode([]byte(`{"event":"confirm-booking","id":"7","data":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, EventConfirmBooking, env.Event)
	assert.Equal(t, "7", env.ID)

	_, err = Decode([]byte(`{"id":"7"}`))
	assert.ErrorIs(t, err, model.ErrInvalidRequest)

	_, err = Decode([]byte(`not json`))
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}

func TestDecodeID(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{"bare string", `"slot-1"`, "slot-1", false},
		{"object", `{"slotId":"slot-2"}`, "slot-2", false},
		{"missing field", `{"other":"x"}`, "", true},
		{"wrong type", `{"slotId":5}`, "", true},
		{"number", `5`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeID(json.RawMessage(tt.data), "slotId")
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
