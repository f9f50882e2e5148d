package boardstore

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by project id to enable
// multiple projects to safely coexist on a single Redis server.
//
// Key pattern: slate:{project_id}:{channel}:{entity}:{id}
// Channel pattern: slate:{project_id}:{channel}:events

// ItemKey returns the Redis key for a content item hash.
// Pattern: slate:{project_id}:{channel}:item:{item_id}
func ItemKey(projectID string, channel Channel, itemID string) string {
	return fmt.Sprintf("slate:%s:%s:item:%s", projectID, channel, itemID)
}

// ItemIndexKey returns the Redis key for the set of item ids in a channel.
// The index makes full-channel snapshot reads possible without KEYS scans.
// Pattern: slate:{project_id}:{channel}:items
func ItemIndexKey(projectID string, channel Channel) string {
	return fmt.Sprintf("slate:%s:%s:items", projectID, channel)
}

// ChannelEventsChannel returns the Pub/Sub channel name for change ticks on
// one channel's item collection. Every successful write publishes a tick;
// subscribers re-fetch the full snapshot on each tick.
// Pattern: slate:{project_id}:{channel}:events
func ChannelEventsChannel(projectID string, channel Channel) string {
	return fmt.Sprintf("slate:%s:%s:events", projectID, channel)
}

// ProjectKey returns the Redis key for the project document hash.
// Pattern: slate:project:{project_id}
func ProjectKey(projectID string) string {
	return fmt.Sprintf("slate:project:%s", projectID)
}

// NotificationsKey returns the Redis key for one user's notification hash.
// Field = notification record id, value = JSON-encoded NotificationRecord.
// Pattern: slate:{project_id}:notify:{user_id}
func NotificationsKey(projectID, userID string) string {
	return fmt.Sprintf("slate:%s:notify:%s", projectID, userID)
}
