package storage

import (
	"context"
	"testing"

	"fieldsync/internal/domain/ingest"
	"fieldsync/internal/utils/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MemoryFallback(t *testing.T) {
	b, err := Open(context.Background(), "", logger.Discard())
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, "memory", b.Kind)

	cats, err := b.Ingest.Reference(context.Background(), ingest.RefTicketCategories)
	require.NoError(t, err)
	assert.Contains(t, string(cats), "hvac")
}
