//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kwanza/fiscal/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
)

const (
	minioUser     = "minioadmin"
	minioPassword = "minioadmin"
)

func newMinIOStorage(t *testing.T) *S3ObjectStorage {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			Cmd:          []string{"server", "/data"},
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	s, err := NewS3ObjectStorage(&config.StorageConfig{
		Endpoint:     fmt.Sprintf("%s:%s", host, port.Port()),
		Bucket:       "fiscal-archive-test",
		AccessKey:    minioUser,
		SecretKey:    minioPassword,
		UsePathStyle: true,
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, s.EnsureBucket(ctx))
	return s
}

func TestIntegration_ArchiveRoundTrip(t *testing.T) {
	s := newMinIOStorage(t)
	ctx := context.Background()

	key := "saft/tenant/SAFT_AO_2026-01-01_2026-01-31.xml"
	body := []byte(`<?xml version="1.0" encoding="UTF-8"?><AuditFile/>`)

	exists, err := s.ObjectExists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.PutObject(ctx, key, "application/xml", body))

	exists, err = s.ObjectExists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.GetObject(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	_, err = s.GetObject(ctx, "saft/tenant/missing.xml")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestIntegration_EnsureBucketIsIdempotent(t *testing.T) {
	s := newMinIOStorage(t)
	require.NoError(t, s.EnsureBucket(context.Background()))
}
