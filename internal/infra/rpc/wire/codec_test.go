package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"

	"github.com/vietddude/debugctl/internal/core/domain"
)

func TestCodecRegistered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	assert.Equal(t, CodecName, c.Name())
}

func TestCodec_FieldNames(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	req := &domain.UpdateActiveBreakpointRequest{
		DebuggeeId: "D1",
		Breakpoint: &domain.Breakpoint{
			Id:           "B1",
			Location:     &domain.SourceLocation{Path: "main.go", Line: 42},
			IsFinalState: true,
			CreateTime:   &created,
		},
	}

	data, err := jsonCodec{}.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"debuggee_id": "D1",
		"breakpoint": {
			"id": "B1",
			"location": {"path": "main.go", "line": 42},
			"is_final_state": true,
			"create_time": "2026-03-01T12:00:00Z"
		}
	}`, string(data))

	var out domain.UpdateActiveBreakpointRequest
	require.NoError(t, jsonCodec{}.Unmarshal(data, &out))
	assert.Equal(t, req, &out)
}
