package s3

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/errs"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiError(code, message string) error {
	return &smithy.GenericAPIError{Code: code, Message: message}
}

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
			name: "no such key",
			err:  apiError("NoSuchKey", "The specified key does not exist."),
			want: errs.ErrKindNotFound,
		},
		{
			name: "head object not found",
			err:  apiError("NotFound", "Not Found"),
			want: errs.ErrKindNotFound,
		},
		{
			name: "access denied",
			err:  apiError("AccessDenied", "Access Denied"),
			want: errs.ErrKindPermissionDenied,
		},
		{
			name: "bad access key",
			err:  apiError("InvalidAccessKeyId", "The AWS Access Key Id you provided does not exist"),
			want: errs.ErrKindPermissionDenied,
		},
		{
			name: "invalid bucket name",
			err:  apiError("InvalidBucketName", "The specified bucket is not valid."),
			want: errs.ErrKindInvalidInput,
		},
		{
			name: "slow down",
			err:  apiError("SlowDown", "Please reduce your request rate."),
			want: errs.ErrKindTimeout,
		},
		{
			name: "bucket already owned",
			err:  apiError("BucketAlreadyOwnedByYou", "Your previous request to create the named bucket succeeded"),
			want: errs.ErrKindOperationFailed,
		},
		{
			name: "unrecognised service error",
			err:  apiError("InternalError", "We encountered an internal error."),
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
	err := fmt.Errorf("listing: %w", apiError("NoSuchBucket", "The specified bucket does not exist"))

	mapped := mapError(err, "failed to list objects")
	assert.Contains(t, mapped.Error(), "The specified bucket does not exist")
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "NoSuchBucketPolicy", errorCode(apiError("NoSuchBucketPolicy", "no policy")))
	assert.Equal(t, "", errorCode(errors.New("plain")))
}

func TestEncodeTags(t *testing.T) {
	assert.Equal(t, "", encodeTags(nil))

	enc := encodeTags([]storage.Tag{
		{Key: "author", Value: "ops"},
		{Key: "zone", Value: "eu west"},
	})
	assert.Equal(t, "author=ops&zone=eu+west", enc)

	// Duplicate keys follow the later-wins rule shared with the minio
	// driver, so the tag set on the wire never repeats a key.
	enc = encodeTags([]storage.Tag{
		{Key: "env", Value: "stage"},
		{Key: "env", Value: "prod"},
	})
	assert.Equal(t, "env=prod", enc)
}
