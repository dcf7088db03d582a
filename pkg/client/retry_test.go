package client

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func serverError() error {
	return &APIError{StatusCode: 500, ErrorClass: ErrorClassServer, Message: "boom"}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
		callCount++
		if callCount < 3 {
			return serverError()
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_MaxAttemptsExhausted(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
		callCount++
		return serverError()
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if ClassOf(err) != ErrorClassServer {
		t.Errorf("exhausted error should keep the last class, got %q", ClassOf(err))
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls (MaxAttempts), got %d", callCount)
	}
}

func TestRetryWithBackoff_SingleAttemptReturnsOriginal(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastRetryConfig(1), func() error {
		callCount++
		return serverError()
	})

	if errors.Is(err, ErrRetryExhausted) {
		t.Error("single attempt should return the original error")
	}
	if ClassOf(err) != ErrorClassServer {
		t.Errorf("ClassOf() = %q, want server", ClassOf(err))
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_NonRetryableClasses(t *testing.T) {
	classes := []ErrorClass{ErrorClassClient, ErrorClassRateLimit, ErrorClassValidation, ErrorClassCancelled, ""}

	for _, class := range classes {
		t.Run(string(class), func(t *testing.T) {
			callCount := 0
			testErr := &APIError{ErrorClass: class, Message: "no retry"}
			err := retryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
				callCount++
				return testErr
			})

			if callCount != 1 {
				t.Errorf("Expected 1 call, got %d", callCount)
			}
			if !errors.Is(err, testErr) {
				t.Errorf("Expected original error, got %v", err)
			}
		})
	}
}

func TestRetryWithBackoff_PlainErrorNotRetried(t *testing.T) {
	callCount := 0
	testErr := errors.New("decode failure")
	err := retryWithBackoff(context.Background(), fastRetryConfig(3), func() error {
		callCount++
		return testErr
	})

	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
	if !errors.Is(err, testErr) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	config := fastRetryConfig(3)
	config.InitialBackoff = time.Second
	err := retryWithBackoff(ctx, config, func() error {
		callCount++
		if callCount == 1 {
			cancel()
		}
		return serverError()
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if !IsCancelled(err) {
		t.Error("IsCancelled() should be true")
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call due to cancellation, got %d", callCount)
	}
}
