package s3

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/errs"
)

// mapError translates an AWS SDK error into a *errs.Error.
// It mirrors the mapError pattern used by the minio driver: the backend's
// response message stays in the cause chain.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	// Context cancellation / deadline
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket", "NoSuchKey", "NotFound", "NoSuchUpload":
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case "InvalidBucketName", "InvalidArgument", "KeyTooLongError":
			return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
		case "RequestTimeout", "SlowDown":
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			return errs.Wrap(errs.ErrKindOperationFailed, msg, err)
		}
		// The service answered with an error we have no special case for.
		return errs.Wrap(errs.ErrKindOperationFailed, msg, err)
	}

	// No service response at all: connectivity problem.
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// errorCode extracts the service error code, or "" for non-API errors.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
