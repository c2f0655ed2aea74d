// Package service contains the task use cases. TaskService orchestrates the
// task store, the cache and the job dispatcher for every task read and
// mutation.
//
// Reads are cache-aside. Writes run in a store transaction; once it has
// committed the affected cache entries are invalidated and, for status
// changes, a task-status-update job is enqueued on a best-effort basis. Cache
// and queue failures never fail a committed write.
package service
