package boardstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-project")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func testItem() *ContentItem {
	return &ContentItem{
		ID:          uuid.New().String(),
		MediaURL:    "https://cdn.example.com/asset.jpg",
		Title:       "Spring promo",
		Description: "Hero shot for the spring campaign",
		Label:       LabelReadyForApproval,
		ContentType: ContentTypePhoto,
		Location:    LocationPool,
		LastMovedMs: NowMs(),
		Attachments: []Attachment{},
		Comments:    []ItemComment{},
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-project", client.ProjectID())
	})

	t.Run("rejects empty project id", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "project id cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	err := client.Ping(context.Background())
	assert.NoError(t, err)
}

func TestCreateItem(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("creates valid item", func(t *testing.T) {
		item := testItem()
		err := client.CreateItem(ctx, ChannelInstagram, item)
		require.NoError(t, err)

		retrieved, err := client.GetItem(ctx, ChannelInstagram, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.ID, retrieved.ID)
		assert.Equal(t, item.Title, retrieved.Title)
		assert.Equal(t, item.Label, retrieved.Label)
		assert.Equal(t, LocationPool, retrieved.Location)
	})

	t.Run("rejects invalid item", func(t *testing.T) {
		item := testItem()
		item.ID = "not-a-uuid"

		err := client.CreateItem(ctx, ChannelInstagram, item)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid item")
	})

	t.Run("rejects invalid channel", func(t *testing.T) {
		err := client.CreateItem(ctx, Channel("myspace"), testItem())
		assert.Error(t, err)
	})

	t.Run("indexes item for snapshot reads", func(t *testing.T) {
		item := testItem()
		require.NoError(t, client.CreateItem(ctx, ChannelTikTok, item))

		snapshot, err := client.GetChannelSnapshot(ctx, ChannelTikTok)
		require.NoError(t, err)
		assert.Contains(t, snapshot.Items, item.ID)
	})
}

func TestGetItem(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("returns redis.Nil for missing item", func(t *testing.T) {
		_, err := client.GetItem(ctx, ChannelInstagram, uuid.New().String())
		assert.Error(t, err)
		assert.True(t, IsNotFound(err))
	})
}

func TestPatchItemFields(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("patches only the given fields", func(t *testing.T) {
		item := testItem()
		require.NoError(t, client.CreateItem(ctx, ChannelInstagram, item))

		err := client.PatchItemFields(ctx, ChannelInstagram, item.ID, map[string]interface{}{
			FieldLocation:    "2025-0-14",
			FieldLastMovedMs: int64(1234567890123),
		})
		require.NoError(t, err)

		retrieved, err := client.GetItem(ctx, ChannelInstagram, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "2025-0-14", retrieved.Location)
		assert.Equal(t, int64(1234567890123), retrieved.LastMovedMs)
		// untouched fields survive
		assert.Equal(t, item.Title, retrieved.Title)
		assert.Equal(t, item.MediaURL, retrieved.MediaURL)
	})

	t.Run("never resurrects a deleted item", func(t *testing.T) {
		item := testItem()
		require.NoError(t, client.CreateItem(ctx, ChannelInstagram, item))
		require.NoError(t, client.DeleteItem(ctx, ChannelInstagram, item.ID))

		err := client.PatchItemFields(ctx, ChannelInstagram, item.ID, map[string]interface{}{
			FieldTitle: "ghost",
		})
		assert.True(t, IsNotFound(err))

		_, err = client.GetItem(ctx, ChannelInstagram, item.ID)
		assert.True(t, IsNotFound(err))
	})

	t.Run("rejects empty patch", func(t *testing.T) {
		err := client.PatchItemFields(ctx, ChannelInstagram, uuid.New().String(), map[string]interface{}{})
		assert.Error(t, err)
	})
}

func TestDeleteItems(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("removes batch and index entries", func(t *testing.T) {
		a, b := testItem(), testItem()
		require.NoError(t, client.CreateItem(ctx, ChannelInstagram, a))
		require.NoError(t, client.CreateItem(ctx, ChannelInstagram, b))

		err := client.DeleteItems(ctx, ChannelInstagram, []string{a.ID, b.ID})
		require.NoError(t, err)

		snapshot, err := client.GetChannelSnapshot(ctx, ChannelInstagram)
		require.NoError(t, err)
		assert.NotContains(t, snapshot.Items, a.ID)
		assert.NotContains(t, snapshot.Items, b.ID)
	})

	t.Run("deleting missing items is not an error", func(t *testing.T) {
		err := client.DeleteItems(ctx, ChannelInstagram, []string{uuid.New().String()})
		assert.NoError(t, err)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		err := client.DeleteItems(ctx, ChannelInstagram, nil)
		assert.NoError(t, err)
	})
}

func TestGetChannelSnapshot(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("empty channel yields empty snapshot", func(t *testing.T) {
		snapshot, err := client.GetChannelSnapshot(ctx, ChannelYouTube)
		require.NoError(t, err)
		assert.Equal(t, ChannelYouTube, snapshot.Channel)
		assert.Empty(t, snapshot.Items)
	})

	t.Run("channels are isolated", func(t *testing.T) {
		item := testItem()
		require.NoError(t, client.CreateItem(ctx, ChannelInstagram, item))

		snapshot, err := client.GetChannelSnapshot(ctx, ChannelFacebook)
		require.NoError(t, err)
		assert.NotContains(t, snapshot.Items, item.ID)
	})
}

func TestSubscribeChannel(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("delivers initial snapshot immediately", func(t *testing.T) {
		item := testItem()
		require.NoError(t, client.CreateItem(ctx, ChannelInstagram, item))

		sub, err := client.SubscribeChannel(ctx, ChannelInstagram)
		require.NoError(t, err)
		defer sub.Close()

		select {
		case snapshot := <-sub.Snapshots():
			assert.Contains(t, snapshot.Items, item.ID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for initial snapshot")
		}
	})

	t.Run("delivers fresh snapshot on change tick", func(t *testing.T) {
		sub, err := client.SubscribeChannel(ctx, ChannelTikTok)
		require.NoError(t, err)
		defer sub.Close()

		// drain the initial snapshot
		select {
		case <-sub.Snapshots():
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for initial snapshot")
		}

		item := testItem()
		require.NoError(t, client.CreateItem(ctx, ChannelTikTok, item))

		select {
		case snapshot := <-sub.Snapshots():
			assert.Contains(t, snapshot.Items, item.ID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for change snapshot")
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		sub, err := client.SubscribeChannel(ctx, ChannelFacebook)
		require.NoError(t, err)
		assert.NoError(t, sub.Close())
		assert.NoError(t, sub.Close())
	})

	t.Run("rejects invalid channel", func(t *testing.T) {
		_, err := client.SubscribeChannel(ctx, Channel("friendster"))
		assert.Error(t, err)
	})
}

func TestProjectLifecycle(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	t.Run("get before create reports not found", func(t *testing.T) {
		_, err := client.GetProject(ctx)
		assert.True(t, IsNotFound(err))
	})

	t.Run("create and read back", func(t *testing.T) {
		project := &Project{
			ID:        "test-project",
			Name:      "Test Project",
			Members:   []Member{{ID: "u1", Name: "Ana"}},
			MemberIDs: []string{"u1"},
		}
		require.NoError(t, client.CreateProject(ctx, project))

		retrieved, err := client.GetProject(ctx)
		require.NoError(t, err)
		assert.Equal(t, project.ID, retrieved.ID)
		assert.Len(t, retrieved.Members, 1)
	})

	t.Run("add member is idempotent", func(t *testing.T) {
		require.NoError(t, client.AddMember(ctx, Member{ID: "u2", Name: "Ben"}))
		require.NoError(t, client.AddMember(ctx, Member{ID: "u2", Name: "Ben"}))

		project, err := client.GetProject(ctx)
		require.NoError(t, err)
		assert.Len(t, project.MemberIDs, 2)
	})

	t.Run("rejects invalid project", func(t *testing.T) {
		err := client.CreateProject(ctx, &Project{ID: "", Name: "x"})
		assert.Error(t, err)
	})
}

func TestNotifications(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	rec := &NotificationRecord{
		ID:          uuid.New().String(),
		Type:        "comment",
		Message:     "Ana commented on \"Spring promo\"",
		ContentID:   uuid.New().String(),
		ActorID:     "u1",
		ActorName:   "Ana",
		LastComment: "love it",
		TimestampMs: NowMs(),
		Count:       1,
	}

	t.Run("put and list round trip", func(t *testing.T) {
		require.NoError(t, client.PutNotification(ctx, "u2", rec))

		records, err := client.ListNotifications(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, rec.Message, records[0].Message)
		assert.False(t, records[0].Read)
	})

	t.Run("put with same id updates in place", func(t *testing.T) {
		updated := *rec
		updated.Count = 2
		updated.LastComment = "even better"
		require.NoError(t, client.PutNotification(ctx, "u2", &updated))

		records, err := client.ListNotifications(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 2, records[0].Count)
		assert.Equal(t, "even better", records[0].LastComment)
	})

	t.Run("mark all read flips unread only once", func(t *testing.T) {
		require.NoError(t, client.MarkAllNotificationsRead(ctx, "u2"))

		records, err := client.ListNotifications(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.True(t, records[0].Read)
	})

	t.Run("empty inbox lists empty slice", func(t *testing.T) {
		records, err := client.ListNotifications(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("rejects record without id", func(t *testing.T) {
		err := client.PutNotification(ctx, "u2", &NotificationRecord{})
		assert.Error(t, err)
	})
}
