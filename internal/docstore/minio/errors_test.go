package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	miniogo "github.com/minio/minio-go/v7"

	"github.com/koustreak/tablegate/internal/docstore"
	"github.com/koustreak/tablegate/internal/errs"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), errs.ErrKindTimeout},
		{"no such bucket", miniogo.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"access denied", miniogo.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, errs.ErrKindPermissionDenied},
		{"bad bucket name", miniogo.ErrorResponse{Code: "InvalidBucketName", StatusCode: http.StatusBadRequest}, errs.ErrKindInvalidInput},
		{"slow down", miniogo.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, errs.ErrKindTimeout},
		{"status only", miniogo.ErrorResponse{StatusCode: http.StatusUnauthorized}, errs.ErrKindPermissionDenied},
		{"network", errors.New("dial tcp: connection refused"), errs.ErrKindConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errs.KindOf(mapError(tt.err, "op")))
		})
	}
	assert.Nil(t, mapError(nil, "op"))
}

func TestNew_DoesNotDial(t *testing.T) {
	d, err := New(&docstore.Config{Endpoint: "127.0.0.1:1", AccessKey: "k", SecretKey: "s"})
	assert.NoError(t, err)
	assert.NoError(t, d.Close())

	_, err = d.BucketExists(context.Background(), "")
	assert.True(t, errs.IsInvalidInput(err))
}
