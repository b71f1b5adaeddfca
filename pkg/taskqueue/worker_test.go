package taskqueue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProcessor 模拟转换处理器
type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, conversionID string) error {
	args := m.Called(ctx, conversionID)
	return args.Error(0)
}

var errPermanent = errors.New("conversion not found")

func newTestWorker(t *testing.T, processor Processor) *Worker {
	_, cfg := setupRedisTest(t)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewWorker(cfg, processor, WithPermanentErrors(errPermanent), WithWorkerLogger(logger))
}

func newConversionTask(t *testing.T, conversionID string) *asynq.Task {
	payload, err := MarshalPayload(ConversionPayload{ConversionID: conversionID})
	require.NoError(t, err)
	return asynq.NewTask(string(TaskConversionProcess), payload)
}

func TestWorker_HandleConversion(t *testing.T) {
	processor := new(MockProcessor)
	processor.On("Process", mock.Anything, "conv-1").Return(nil).Once()

	w := newTestWorker(t, processor)
	err := w.handleConversion(context.Background(), newConversionTask(t, "conv-1"))

	assert.NoError(t, err)
	processor.AssertExpectations(t)
}

func TestWorker_RetryableError(t *testing.T) {
	processor := new(MockProcessor)
	processor.On("Process", mock.Anything, "conv-1").Return(errors.New("storage unavailable")).Once()

	w := newTestWorker(t, processor)
	err := w.handleConversion(context.Background(), newConversionTask(t, "conv-1"))

	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	processor.AssertExpectations(t)
}

func TestWorker_PermanentError(t *testing.T) {
	processor := new(MockProcessor)
	processor.On("Process", mock.Anything, "conv-1").Return(errPermanent).Once()

	w := newTestWorker(t, processor)
	err := w.handleConversion(context.Background(), newConversionTask(t, "conv-1"))

	assert.ErrorIs(t, err, asynq.SkipRetry)
	processor.AssertExpectations(t)
}

func TestWorker_InvalidPayload(t *testing.T) {
	processor := new(MockProcessor)
	w := newTestWorker(t, processor)

	err := w.handleConversion(context.Background(), asynq.NewTask(string(TaskConversionProcess), []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = w.handleConversion(context.Background(), asynq.NewTask(string(TaskConversionProcess), []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
}

func TestProcessorFunc(t *testing.T) {
	var got string
	p := ProcessorFunc(func(ctx context.Context, id string) error {
		got = id
		return nil
	})

	require.NoError(t, p.Process(context.Background(), "conv-9"))
	assert.Equal(t, "conv-9", got)
}

func TestIsFinalAttempt(t *testing.T) {
	ctx := context.Background()
	assert.True(t, IsFinalAttempt(ctx))

	assert.False(t, IsFinalAttempt(WithAttempt(ctx, 0, 3)))
	assert.False(t, IsFinalAttempt(WithAttempt(ctx, 2, 3)))
	assert.True(t, IsFinalAttempt(WithAttempt(ctx, 3, 3)))
	assert.True(t, IsFinalAttempt(WithAttempt(ctx, 0, 0)))
}

func TestWorker_PassesAttemptThrough(t *testing.T) {
	var final bool
	w := newTestWorker(t, ProcessorFunc(func(ctx context.Context, id string) error {
		final = IsFinalAttempt(ctx)
		return nil
	}))

	// 不经过asynq服务器时没有投递信息
	require.NoError(t, w.handleConversion(context.Background(), newConversionTask(t, "conv-1")))
	assert.True(t, final)
}
