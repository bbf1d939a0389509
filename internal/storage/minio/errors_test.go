package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/errs"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: errs.ErrKindTimeout,
		},
		{
			name: "context canceled",
			err:  context.Canceled,
			want: errs.ErrKindTimeout,
		},
		{
			name: "404 response",
			err:  miniogo.ErrorResponse{StatusCode: http.StatusNotFound, Code: "NoSuchKey"},
			want: errs.ErrKindNotFound,
		},
		{
			name: "403 response",
			err:  miniogo.ErrorResponse{StatusCode: http.StatusForbidden, Code: "AccessDenied"},
			want: errs.ErrKindPermissionDenied,
		},
		{
			name: "400 response",
			err:  miniogo.ErrorResponse{StatusCode: http.StatusBadRequest, Code: "InvalidBucketName"},
			want: errs.ErrKindInvalidInput,
		},
		{
			name: "409 bucket exists",
			err:  miniogo.ErrorResponse{StatusCode: http.StatusConflict, Code: "BucketAlreadyOwnedByYou"},
			want: errs.ErrKindOperationFailed,
		},
		{
			name: "no such bucket by code",
			err:  miniogo.ErrorResponse{Code: "NoSuchBucket"},
			want: errs.ErrKindNotFound,
		},
		{
			name: "bad signature by code",
			err:  miniogo.ErrorResponse{Code: "SignatureDoesNotMatch"},
			want: errs.ErrKindPermissionDenied,
		},
		{
			name: "slow down by code",
			err:  miniogo.ErrorResponse{Code: "SlowDown"},
			want: errs.ErrKindTimeout,
		},
		{
			name: "server error status",
			err:  miniogo.ErrorResponse{StatusCode: http.StatusServiceUnavailable, Code: "InternalError"},
			want: errs.ErrKindOperationFailed,
		},
		{
			name: "plain network error",
			err:  errors.New("dial tcp: connection refused"),
			want: errs.ErrKindConnectionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := mapError(tt.err, "op failed")
			require.NotNil(t, mapped)
			assert.Equal(t, tt.want, mapped.Kind)
			assert.ErrorIs(t, mapped, tt.err)
		})
	}
}

func TestMapErrorNil(t *testing.T) {
	assert.Nil(t, mapError(nil, "ignored"))
}

func TestMapErrorKeepsBackendMessage(t *testing.T) {
	resp := miniogo.ErrorResponse{
		StatusCode: http.StatusNotFound,
		Code:       "NoSuchBucket",
		Message:    "The specified bucket does not exist",
	}

	mapped := mapError(fmt.Errorf("listing: %w", resp), "failed to list objects")
	assert.Contains(t, mapped.Error(), "The specified bucket does not exist")
}
