package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	blobcore "liderforte/internal/blob/core"
	"liderforte/pkg/domain"
)

// CompletionArchive is the document written after a successful execute.
type CompletionArchive struct {
	Process     domain.MultiplicationProcess `json:"process"`
	NewCell     domain.Cell                  `json:"new_cell"`
	Assignments []domain.MemberAssignment    `json:"assignments"`
	ExecutedBy  string                       `json:"executed_by"`
	ArchivedAt  time.Time                    `json:"archived_at"`
}

const archivePrefix = "multiplications"

// ArchiveKey returns the blob key of a process archive.
func ArchiveKey(organizationID, processID string) string {
	return path.Join(archivePrefix, organizationID, processID+".json")
}

// archiveCompletion stores the completion document. Failures are logged and
// audited only; the execute has already committed.
func (s *Service) archiveCompletion(ctx context.Context, actorID string, proc domain.MultiplicationProcess, newCell domain.Cell, assignments []domain.MemberAssignment) {
	if s.archive == nil {
		return
	}
	ctx, op := s.begin(ctx, "archive_multiplication", actorID)
	op.entityID = proc.ID
	var err error
	defer func() { _ = op.end(ctx, err) }()

	doc := CompletionArchive{
		Process:     proc,
		NewCell:     newCell,
		Assignments: assignments,
		ExecutedBy:  actorID,
		ArchivedAt:  s.now(),
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		err = fmt.Errorf("encode archive: %w", err)
		return
	}
	_, err = s.archive.Put(ctx, ArchiveKey(proc.OrganizationID, proc.ID), bytes.NewReader(payload), blobcore.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"process":     proc.ID,
			"source-cell": proc.SourceCellID,
			"new-cell":    newCell.ID,
		},
	})
	if err != nil {
		err = domain.Unavailable("archive_multiplication", err)
	}
}

// ListArchives returns the archived completions of an organization.
func (s *Service) ListArchives(ctx context.Context, organizationID string) ([]blobcore.Info, error) {
	if s.archive == nil {
		return nil, nil
	}
	infos, err := s.archive.List(ctx, archivePrefix+"/"+organizationID+"/")
	if err != nil {
		return nil, domain.Unavailable("list_archives", err)
	}
	return infos, nil
}

// ReadArchive loads one completion document.
func (s *Service) ReadArchive(ctx context.Context, organizationID, processID string) (CompletionArchive, error) {
	if s.archive == nil {
		return CompletionArchive{}, domain.NotFound("read_archive", domain.EntityProcess, processID)
	}
	_, rc, err := s.archive.Get(ctx, ArchiveKey(organizationID, processID))
	if err != nil {
		if errors.Is(err, blobcore.ErrNotFound) {
			return CompletionArchive{}, domain.NotFound("read_archive", domain.EntityProcess, processID)
		}
		return CompletionArchive{}, domain.Unavailable("read_archive", err)
	}
	defer func() { _ = rc.Close() }()
	var doc CompletionArchive
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return CompletionArchive{}, fmt.Errorf("decode archive %s: %w", processID, err)
	}
	return doc, nil
}
