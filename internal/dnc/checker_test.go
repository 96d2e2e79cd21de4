package dnc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lender-enrich/internal/model"
	"github.com/sells-group/lender-enrich/pkg/realvalidation"
	"github.com/sells-group/lender-enrich/pkg/realvalidation/mocks"
)

func TestCheck_OnList(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("DNCLookup", mock.Anything, "5125550134").Return(&realvalidation.LookupResponse{
		ResponseCode: "OK", NationalDNC: "Y", StateDNC: "Y", IsCell: "Y", Litigator: "N", ID: "r-1",
	}, nil).Once()

	res := NewChecker(client, WithRate(0)).Check(context.Background(), "(512) 555-0134")

	assert.Equal(t, model.DNCResult{
		IsDNC: true, NationalDNC: true, StateDNC: true, IsCell: true, ID: "r-1",
	}, res)
	assert.False(t, res.Inconclusive())
}

func TestCheck_Clear(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("DNCLookup", mock.Anything, "5125550134").Return(&realvalidation.LookupResponse{
		ResponseCode: "OK", NationalDNC: "N", StateDNC: "Y", Litigator: "Y",
	}, nil).Once()

	res := NewChecker(client, WithRate(0)).Check(context.Background(), "512.555.0134")

	assert.False(t, res.IsDNC)
	assert.False(t, res.NationalDNC)
	assert.True(t, res.StateDNC)
	assert.True(t, res.IsLitigator)
	assert.Empty(t, res.Error)
}

func TestCheck_InvalidInputSkipsNetwork(t *testing.T) {
	client := mocks.NewMockClient(t)
	c := NewChecker(client, WithRate(0))

	tests := []struct {
		phone string
		want  string
	}{
		{"", ErrMissingInput},
		{"555-0134", ErrInvalidLength},
		{"1 (512) 555-0134", ErrInvalidLength},
		{"512555013", ErrInvalidLength},
	}
	for _, tt := range tests {
		res := c.Check(context.Background(), tt.phone)
		assert.Equal(t, model.DNCResult{Error: tt.want}, res, tt.phone)
	}
	client.AssertNotCalled(t, "DNCLookup", mock.Anything, mock.Anything)
}

func TestCheck_NoCredential(t *testing.T) {
	c := NewChecker(nil)

	assert.False(t, c.Configured())
	assert.Equal(t, model.DNCResult{Error: ErrMissingInput}, c.Check(context.Background(), "5125550134"))
}

func TestCheck_TransportError(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("DNCLookup", mock.Anything, "5125550134").
		Return(nil, errors.New("realvalidation: send request: timeout")).Once()

	res := NewChecker(client, WithRate(0)).Check(context.Background(), "5125550134")

	assert.False(t, res.IsDNC)
	assert.Equal(t, "realvalidation: send request: timeout", res.Error)
}

func TestCheck_RateLimited(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("DNCLookup", mock.Anything, "5125550134").
		Return(&realvalidation.LookupResponse{ResponseCode: "OK", NationalDNC: "N"}, nil).Times(3)

	c := NewChecker(client, WithRate(20))
	start := time.Now()
	for i := 0; i < 3; i++ {
		c.Check(context.Background(), "5125550134")
	}

	// Burst of one: the second and third calls each wait ~50ms.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestCheck_CancelledWhileWaiting(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("DNCLookup", mock.Anything, "5125550134").
		Return(&realvalidation.LookupResponse{ResponseCode: "OK", NationalDNC: "N"}, nil).Once()

	c := NewChecker(client, WithRate(0.001))
	c.Check(context.Background(), "5125550134")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := c.Check(ctx, "5125550134")

	assert.True(t, res.Inconclusive())
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		name string
		resp *realvalidation.LookupResponse
		want model.DNCResult
	}{
		{"nil", nil, model.DNCResult{Error: ErrUnexpectedFormat}},
		{"error with message", &realvalidation.LookupResponse{ResponseCode: "-1", ResponseMsg: "Invalid token"}, model.DNCResult{Error: "Invalid token"}},
		{"error without message", &realvalidation.LookupResponse{ResponseCode: "-1"}, model.DNCResult{Error: ErrAPIError}},
		{"ok missing flag", &realvalidation.LookupResponse{ResponseCode: "OK"}, model.DNCResult{Error: ErrUnexpectedFormat}},
		{"ok odd flag", &realvalidation.LookupResponse{ResponseCode: "OK", NationalDNC: "maybe"}, model.DNCResult{Error: ErrUnexpectedFormat}},
		{"unknown code", &realvalidation.LookupResponse{ResponseCode: "PENDING", NationalDNC: "Y"}, model.DNCResult{Error: ErrUnexpectedFormat}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpret(tt.resp))
		})
	}
}
