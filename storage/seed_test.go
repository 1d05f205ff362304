package storage

import (
	"testing"

	"github.com/creativeprojects/mailstate/lib"
	"github.com/creativeprojects/mailstate/mailbox"
	"github.com/creativeprojects/mailstate/storage/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	count int
}

func (c *counter) Increment() {
	c.count++
}

func TestGenerateMessages(t *testing.T) {
	backend := mem.New()
	info, err := backend.CreateFolder(mailbox.Mail, "inbox", mailbox.NoFolder)
	require.NoError(t, err)

	pbar := &counter{}
	require.NoError(t, GenerateMessages(backend, info.ID, 20, 100, 2000, pbar))
	assert.Equal(t, 20, pbar.count)

	messages, err := backend.ListMessages(info.ID)
	require.NoError(t, err)
	require.Len(t, messages, 20)
	for _, message := range messages {
		assert.NotEmpty(t, message.Subject)
		assert.GreaterOrEqual(t, message.Size, uint32(100))
		assert.LessOrEqual(t, message.Size, uint32(2000))
		assert.LessOrEqual(t, message.Received, message.Arrived)
	}

	err = GenerateMessages(backend, 9999, 1, 100, 200, nil)
	assert.ErrorIs(t, err, lib.ErrFolderNotFound)
}
