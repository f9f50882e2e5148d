// Package boardstore provides type-safe Go definitions and Redis schema
// patterns for the Slate content board.
//
// # Overview
//
// The board is the remote shared state that every Slate client reads and
// mutates. Each project owns a small fixed set of channels; each channel owns
// an independent collection of content items keyed by id. Items occupy
// exactly one location: the holding pool or a calendar slot.
//
// # Storage Model
//
// Items are stored as Redis hashes, one hash per item, with list fields
// JSON-encoded into single hash fields. A per-channel set indexes the item
// ids so a full snapshot is a set read plus one hash read per item. Writes
// are last-write-wins at field granularity: a patch touches only the fields
// it names, so concurrent writers touching unrelated fields do not clobber
// each other.
//
// # Subscriptions
//
// Every successful write publishes a change tick on the channel's Pub/Sub
// channel. SubscribeChannel delivers the full current snapshot immediately
// and again after every tick. Pub/Sub is at-most-once, but because each
// delivery carries complete state, a missed tick is healed by the next one.
//
// # Usage Example
//
//	client, err := boardstore.NewClient(&redis.Options{Addr: "localhost:6379"}, "my-project")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	sub, err := client.SubscribeChannel(ctx, boardstore.ChannelInstagram)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sub.Close()
//
//	for snapshot := range sub.Snapshots() {
//		fmt.Printf("channel has %d items\n", len(snapshot.Items))
//	}
package boardstore
