package service

import (
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/internal/testutil"
	"sage_edu_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageSendAndRead(t *testing.T) {
	db := testutil.DB(t)
	svc := NewMessageService(repository.NewMessageRepository(db), repository.NewUserRepository(db))
	alice := testutil.CreateUser(t, db, "alice", model.Student)
	bob := testutil.CreateUser(t, db, "bob", model.Teacher)

	_, err := svc.Send(alice.ID, SendMessageRequest{RecipientID: bob.ID, Content: "  Question about quiz 2  "})
	require.NoError(t, err)
	_, err = svc.Send(alice.ID, SendMessageRequest{RecipientID: bob.ID, Content: "Never mind"})
	require.NoError(t, err)
	reply, err := svc.Send(bob.ID, SendMessageRequest{RecipientID: alice.ID, Content: "Sure"})
	require.NoError(t, err)
	assert.Equal(t, "Sure", reply.Content)

	unread, err := svc.UnreadCount(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	msgs, total, err := svc.Conversation(bob.ID, alice.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, msgs, 3)
	assert.Equal(t, "Sure", msgs[0].Content)

	unread, err = svc.UnreadCount(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	unread, err = svc.UnreadCount(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	peers, err := svc.Peers(alice.ID)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, bob.ID, peers[0].PeerID)
	assert.Equal(t, "bob", peers[0].Name)
	assert.Equal(t, 1, peers[0].Unread)
	require.NotNil(t, peers[0].LastMessage)
	assert.Equal(t, "Sure", peers[0].LastMessage.Content)
}

func TestMessageSendValidation(t *testing.T) {
	db := testutil.DB(t)
	svc := NewMessageService(repository.NewMessageRepository(db), repository.NewUserRepository(db))
	alice := testutil.CreateUser(t, db, "alice", model.Student)

	_, err := svc.Send(alice.ID, SendMessageRequest{RecipientID: alice.ID, Content: "me"})
	assert.ErrorIs(t, err, util.ErrCannotMessageSelf)
	_, err = svc.Send(alice.ID, SendMessageRequest{RecipientID: 999, Content: "ghost"})
	assert.ErrorIs(t, err, util.ErrUserNotFound)
	_, err = svc.Send(alice.ID, SendMessageRequest{RecipientID: 999, Content: "   "})
	assert.ErrorIs(t, err, util.ErrEmptyMessage)
}
