package services

import (
	"fmt"
	"testing"

	"commhub_backend/internal/models"
	"commhub_backend/internal/services/dto"
	"commhub_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotificationFixture(t *testing.T) (NotificationService, *fakeNotificationRepo) {
	t.Helper()
	repo := newFakeNotificationRepo()
	outbox := &syncOutbox{repo: repo}
	return NewNotificationService(repo, outbox), repo
}

func TestNotify_WritesNotification(t *testing.T) {
	svc, repo := newNotificationFixture(t)

	svc.Notify("bob", "alice", models.NotificationMention, "Alice mentioned you", "message", "msg-1", "/chat/conv-1")

	count, err := repo.CountUnread("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNotify_SelfActionSkipped(t *testing.T) {
	svc, repo := newNotificationFixture(t)

	svc.Notify("alice", "alice", models.NotificationReply, "Reply", "message", "msg-1", "")
	svc.Notify("", "alice", models.NotificationReply, "Reply", "message", "msg-1", "")

	count, err := repo.CountUnread("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestNotify_StoreFailureNeverSurfaces(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.failCreate = true
	outbox := &syncOutbox{repo: repo}
	svc := NewNotificationService(repo, outbox)

	// Best-effort: the write is dropped, the caller is not failed.
	svc.Notify("bob", "alice", models.NotificationComment, "Comment", "message", "msg-1", "")
	assert.Equal(t, 1, outbox.dropped)
}

func TestGetUserNotifications_Pagination(t *testing.T) {
	svc, _ := newNotificationFixture(t)
	for i := 0; i < 25; i++ {
		svc.Notify("bob", "alice", models.NotificationComment, fmt.Sprintf("comment %d", i), "message", fmt.Sprintf("msg-%d", i), "")
	}

	page1, err := svc.GetUserNotifications("bob", dto.NotificationCriteria{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(25), page1.Total)
	assert.Len(t, page1.Notifications, 10)

	page3, err := svc.GetUserNotifications("bob", dto.NotificationCriteria{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, page3.Notifications, 5)
}

func TestGetUserNotifications_UnreadOnly(t *testing.T) {
	svc, _ := newNotificationFixture(t)
	svc.Notify("bob", "alice", models.NotificationComment, "first", "message", "msg-1", "")
	svc.Notify("bob", "alice", models.NotificationComment, "second", "message", "msg-2", "")

	all, err := svc.GetUserNotifications("bob", dto.NotificationCriteria{})
	require.NoError(t, err)
	require.Len(t, all.Notifications, 2)

	require.NoError(t, svc.MarkAsRead("bob", all.Notifications[0].ID))

	unread, err := svc.GetUserNotifications("bob", dto.NotificationCriteria{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread.Notifications, 1)
	assert.Equal(t, all.Notifications[1].ID, unread.Notifications[0].ID)
}

func TestMarkAsRead_OwnershipEnforced(t *testing.T) {
	svc, _ := newNotificationFixture(t)
	svc.Notify("bob", "alice", models.NotificationComment, "comment", "message", "msg-1", "")

	list, err := svc.GetUserNotifications("bob", dto.NotificationCriteria{})
	require.NoError(t, err)
	require.Len(t, list.Notifications, 1)

	err = svc.MarkAsRead("carol", list.Notifications[0].ID)
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeForbidden, appErr.Code)

	require.NoError(t, svc.MarkAsRead("bob", list.Notifications[0].ID))
}

func TestMarkAsRead_MissingNotification(t *testing.T) {
	svc, _ := newNotificationFixture(t)

	err := svc.MarkAsRead("bob", "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotificationNotFound)
}

func TestMarkAllAsRead(t *testing.T) {
	svc, _ := newNotificationFixture(t)
	svc.Notify("bob", "alice", models.NotificationComment, "one", "message", "msg-1", "")
	svc.Notify("bob", "alice", models.NotificationReply, "two", "message", "msg-2", "")
	svc.Notify("carol", "alice", models.NotificationComment, "other user", "message", "msg-3", "")

	require.NoError(t, svc.MarkAllAsRead("bob"))

	bobCount, err := svc.GetUnreadCount("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bobCount)

	carolCount, err := svc.GetUnreadCount("carol")
	require.NoError(t, err)
	assert.Equal(t, int64(1), carolCount)
}
