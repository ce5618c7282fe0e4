package redis

// Redis key naming conventions for concord data.
// All keys are prefixed with "concord:" to avoid collisions.

const keyPrefix = "concord:"

// workflowKey returns the key for a checkpoint blob: concord:workflow:{id}
func workflowKey(id string) string { return keyPrefix + "workflow:" + id }

// workflowIDsKey is the Set tracking all workflow IDs for enumeration.
const workflowIDsKey = keyPrefix + "workflow_ids"
