package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Buckets lists the snapshot buckets persisted by durable backends, in write order.
var Buckets = []string{
	"cells",
	"members",
	"memberships",
	"criteria",
	"templates",
	"readiness",
	"processes",
	"assignments",
}

func (s *Snapshot) bucketTarget(bucket string) (any, bool) {
	switch bucket {
	case "cells":
		return &s.Cells, true
	case "members":
		return &s.Members, true
	case "memberships":
		return &s.Memberships, true
	case "criteria":
		return &s.Criteria, true
	case "templates":
		return &s.Templates, true
	case "readiness":
		return &s.Readiness, true
	case "processes":
		return &s.Processes, true
	case "assignments":
		return &s.Assignments, true
	}
	return nil, false
}

// EncodeBucket marshals one bucket of the snapshot to JSON.
func (s Snapshot) EncodeBucket(bucket string) ([]byte, error) {
	target, ok := s.bucketTarget(bucket)
	if !ok {
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
	data, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", bucket, err)
	}
	return data, nil
}

// DecodeBucket loads a JSON payload into the matching bucket. Unknown buckets
// are ignored so older tables can carry retired data.
func (s *Snapshot) DecodeBucket(bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	target, ok := s.bucketTarget(bucket)
	if !ok {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}

// BucketPayload is one encoded bucket ready to be written.
type BucketPayload struct {
	Bucket string
	Data   []byte
}

// BucketCache remembers the last stored payload of each bucket so durable
// backends rewrite only the buckets a commit changed. Stores call it from
// their commit hook, which already runs under the memory store's lock.
type BucketCache struct {
	payloads map[string][]byte
}

// NewBucketCache returns an empty cache; every bucket counts as changed.
func NewBucketCache() *BucketCache {
	return &BucketCache{payloads: make(map[string][]byte, len(Buckets))}
}

// Remember records a payload read back from storage.
func (c *BucketCache) Remember(bucket string, payload []byte) {
	c.payloads[bucket] = append([]byte(nil), payload...)
}

// Changed encodes the snapshot and returns, in Buckets order, the buckets
// whose payload differs from the stored one.
func (c *BucketCache) Changed(snapshot Snapshot) ([]BucketPayload, error) {
	var out []BucketPayload
	for _, bucket := range Buckets {
		data, err := snapshot.EncodeBucket(bucket)
		if err != nil {
			return nil, err
		}
		if prev, ok := c.payloads[bucket]; ok && bytes.Equal(prev, data) {
			continue
		}
		out = append(out, BucketPayload{Bucket: bucket, Data: data})
	}
	return out, nil
}

// Commit records payloads once the backend transaction has committed.
func (c *BucketCache) Commit(written []BucketPayload) {
	for _, p := range written {
		c.payloads[p.Bucket] = p.Data
	}
}
