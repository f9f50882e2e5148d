package boardstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides project-scoped Redis operations for the content board.
// All keys and channels are automatically namespaced with the project id.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb       *redis.Client
	projectID string
}

// NewClient creates a new board client for the specified project.
// The client automatically namespaces all keys and channels with the project id.
//
// Returns an error if projectID is empty.
func NewClient(redisOpts *redis.Options, projectID string) (*Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project id cannot be empty")
	}

	return &Client{
		rdb:       redis.NewClient(redisOpts),
		projectID: projectID,
	}, nil
}

// ProjectID returns the project this client is scoped to.
func (c *Client) ProjectID() string {
	return c.projectID
}

// Close closes the Redis connection. Implements io.Closer.
// After calling Close(), the client should not be used.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateItem writes a full content item to the board and publishes a change
// tick. Validates the item before writing. The item id is added to the
// channel index so snapshot reads can find it.
func (c *Client) CreateItem(ctx context.Context, channel Channel, item *ContentItem) error {
	if err := channel.Validate(); err != nil {
		return err
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}

	hash, err := ItemToHash(item)
	if err != nil {
		return fmt.Errorf("failed to serialize item: %w", err)
	}

	key := ItemKey(c.projectID, channel, item.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write item to Redis: %w", err)
	}

	if err := c.rdb.SAdd(ctx, ItemIndexKey(c.projectID, channel), item.ID).Err(); err != nil {
		return fmt.Errorf("failed to index item: %w", err)
	}

	return c.publishTick(ctx, channel)
}

// GetItem retrieves a content item by id.
// Returns (nil, redis.Nil) if the item doesn't exist.
// Use IsNotFound() to check for not-found errors.
func (c *Client) GetItem(ctx context.Context, channel Channel, itemID string) (*ContentItem, error) {
	key := ItemKey(c.projectID, channel, itemID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read item from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	item, err := HashToItem(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize item: %w", err)
	}

	return item, nil
}

// PatchItemFields applies a minimal field-level patch to an existing item and
// publishes a change tick. Only the given hash fields are written; untouched
// fields keep whatever value a concurrent writer last gave them.
//
// Returns redis.Nil if the item does not exist, so a patch never resurrects
// a concurrently deleted item as a partial hash.
func (c *Client) PatchItemFields(ctx context.Context, channel Channel, itemID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return fmt.Errorf("empty field patch for item %s", itemID)
	}

	key := ItemKey(c.projectID, channel, itemID)

	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check item existence: %w", err)
	}
	if exists == 0 {
		return redis.Nil
	}

	if err := c.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to patch item in Redis: %w", err)
	}

	return c.publishTick(ctx, channel)
}

// DeleteItem removes an item from the board entirely (the key is deleted,
// not nulled) and publishes a change tick. Deleting a missing item is not an
// error.
func (c *Client) DeleteItem(ctx context.Context, channel Channel, itemID string) error {
	return c.DeleteItems(ctx, channel, []string{itemID})
}

// DeleteItems removes a batch of items in a single pipeline round trip and
// publishes one change tick for the whole batch. Used by the invalid-entry
// sweeper to clean up malformed persisted data.
func (c *Client) DeleteItems(ctx context.Context, channel Channel, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	for _, id := range itemIDs {
		pipe.Del(ctx, ItemKey(c.projectID, channel, id))
		pipe.SRem(ctx, ItemIndexKey(c.projectID, channel), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete items from Redis: %w", err)
	}

	return c.publishTick(ctx, channel)
}

// GetChannelSnapshot reads the full current item collection for one channel.
// Items whose hash disappears between the index read and the hash read are
// skipped rather than reported as errors.
func (c *Client) GetChannelSnapshot(ctx context.Context, channel Channel) (*Snapshot, error) {
	ids, err := c.rdb.SMembers(ctx, ItemIndexKey(c.projectID, channel)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read channel index: %w", err)
	}

	snapshot := &Snapshot{
		Channel: channel,
		Items:   make(map[string]*ContentItem, len(ids)),
	}

	for _, id := range ids {
		hashData, err := c.rdb.HGetAll(ctx, ItemKey(c.projectID, channel, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read item %s: %w", id, err)
		}
		if len(hashData) == 0 {
			continue
		}

		item, err := HashToItem(hashData)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize item %s: %w", id, err)
		}
		snapshot.Items[item.ID] = item
	}

	return snapshot, nil
}

// publishTick notifies subscribers that the channel's collection changed.
// Subscribers re-fetch the full snapshot; the payload itself carries no data.
func (c *Client) publishTick(ctx context.Context, channel Channel) error {
	if err := c.rdb.Publish(ctx, ChannelEventsChannel(c.projectID, channel), "changed").Err(); err != nil {
		return fmt.Errorf("failed to publish change tick: %w", err)
	}
	return nil
}

// Subscription represents an active subscription to one channel's item
// collection. Each delivered event is a full current snapshot of the
// collection. Caller must call Close() when done to clean up resources.
type Subscription struct {
	snapshots <-chan *Snapshot
	errors    <-chan error
	cancel    func()
	once      sync.Once
}

// Snapshots returns the channel of snapshot events.
// The channel will be closed when the subscription is closed or the context
// is cancelled.
func (s *Subscription) Snapshots() <-chan *Snapshot {
	return s.snapshots
}

// Errors returns the channel of subscription errors.
// Errors include snapshot fetch failures; the subscription continues after
// errors and the next change tick triggers a fresh fetch.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeChannel subscribes to change events for one channel's item
// collection. The current snapshot is delivered immediately, then a fresh
// full snapshot is delivered after every change tick.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Snapshots are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once: a slow subscriber can miss ticks, but the next tick always
// carries the complete current state, so missed ticks never wedge the view.
func (c *Client) SubscribeChannel(ctx context.Context, channel Channel) (*Subscription, error) {
	if err := channel.Validate(); err != nil {
		return nil, err
	}

	pubsub := c.rdb.Subscribe(ctx, ChannelEventsChannel(c.projectID, channel))

	snapshotsChan := make(chan *Snapshot, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(snapshotsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		deliver := func() {
			snapshot, err := c.GetChannelSnapshot(subCtx, channel)
			if err != nil {
				select {
				case errorsChan <- fmt.Errorf("failed to fetch snapshot: %w", err):
				case <-subCtx.Done():
				}
				return
			}
			select {
			case snapshotsChan <- snapshot:
			case <-subCtx.Done():
			}
		}

		// Initial snapshot so subscribers never start from a blank view
		deliver()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				deliver()
			}
		}
	}()

	return &Subscription{
		snapshots: snapshotsChan,
		errors:    errorsChan,
		cancel:    cancelFunc,
	}, nil
}

// CreateProject writes the project document. Validates before writing.
// This method is idempotent - writing the same project twice is safe.
func (c *Client) CreateProject(ctx context.Context, p *Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	hash, err := ProjectToHash(p)
	if err != nil {
		return fmt.Errorf("failed to serialize project: %w", err)
	}

	if err := c.rdb.HSet(ctx, ProjectKey(p.ID), hash).Err(); err != nil {
		return fmt.Errorf("failed to write project to Redis: %w", err)
	}

	return nil
}

// GetProject retrieves the project document this client is scoped to.
// Returns (nil, redis.Nil) if the project doesn't exist.
func (c *Client) GetProject(ctx context.Context) (*Project, error) {
	hashData, err := c.rdb.HGetAll(ctx, ProjectKey(c.projectID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read project from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	project, err := HashToProject(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize project: %w", err)
	}

	return project, nil
}

// AddMember appends a member to the project document and to the member-id
// index. Adding an existing member id is a no-op.
func (c *Client) AddMember(ctx context.Context, member Member) error {
	project, err := c.GetProject(ctx)
	if err != nil {
		return err
	}

	for _, id := range project.MemberIDs {
		if id == member.ID {
			return nil
		}
	}

	project.Members = append(project.Members, member)
	project.MemberIDs = append(project.MemberIDs, member.ID)

	return c.CreateProject(ctx, project)
}

// PutNotification writes one notification record for a recipient. Used both
// for inserting fresh records and for updating a record merged in place.
func (c *Client) PutNotification(ctx context.Context, userID string, rec *NotificationRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("notification record has no id")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := NotificationsKey(c.projectID, userID)
	if err := c.rdb.HSet(ctx, key, rec.ID, string(data)).Err(); err != nil {
		return fmt.Errorf("failed to write notification to Redis: %w", err)
	}

	return nil
}

// ListNotifications retrieves every notification record for a recipient.
// Returns an empty slice when the recipient has none.
func (c *Client) ListNotifications(ctx context.Context, userID string) ([]*NotificationRecord, error) {
	key := NotificationsKey(c.projectID, userID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notifications from Redis: %w", err)
	}

	records := make([]*NotificationRecord, 0, len(hashData))
	for _, raw := range hashData {
		var rec NotificationRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
		}
		records = append(records, &rec)
	}

	return records, nil
}

// MarkAllNotificationsRead flips every unread record for the recipient to
// read. The transition is one-way: records never go back to unread.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	records, err := c.ListNotifications(ctx, userID)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if rec.Read {
			continue
		}
		rec.Read = true
		if err := c.PutNotification(ctx, userID, rec); err != nil {
			return err
		}
	}

	return nil
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check if GetItem, PatchItemFields or GetProject
// reported "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
