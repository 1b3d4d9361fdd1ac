// Package history stores chats and their messages.
//
// SQLiteStore is the persistent backend (pure-Go modernc driver, WAL mode);
// MemoryStore serves the same interface when persistence is disabled.
// Chat ids are ULIDs, so they sort by creation time; message ids are UUIDs.
// Both are assigned by the chat service, not the store.
//
// PruneScheduler removes chats whose last message is older than the
// retention period, on a cron schedule:
//
//	history:
//	  path: data/history.db
//	  retention_days: 90
//	  prune_schedule: "0 3 * * *"
package history
