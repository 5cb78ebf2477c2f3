// Package store provides the single-table DynamoDB data access layer behind salestrack.
//
// Every entity lives in one physical table addressed by a composite primary key
// (pk + sk). Secondary indexes re-expose items under alternate keys for reverse
// lookups; they are eventually consistent, the base table is not.
//
// # Key Features
//
//   - Strongly consistent primary-key reads
//   - Conditional writes: put-if-absent, must-exist, optimistic locking by version
//   - Soft delete via TTL, with DynamoDB TTL purging rows later
//   - Partition cascade driven by a relationship [Registry]
//   - All-or-nothing multi-item writes with per-write failure reporting
//
// # Backends
//
// [Keyed] is the contract. [Store] implements it on DynamoDB; the memstore
// subpackage implements it in process for local development and tests.
//
//	cfg := store.DefaultConfig()
//	cfg.TableName = "salestrack-prod"
//	s := store.New(dynamodb.NewFromConfig(awsCfg), cfg)
//
// # Errors
//
//   - [ErrNotFound] - item doesn't exist or is deleted
//   - [ErrAlreadyExists] - put-if-absent found a live item
//   - [ErrConcurrentModification] - optimistic lock failed
//   - [ErrConditionFailed] - a transaction write failed its condition (see [TxConditionError])
//   - [ErrUnavailable] - the engine failed; the original error is wrapped
package store
