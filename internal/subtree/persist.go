package subtree

import "fmt"

// Materialize persists the logical tree as the submission's file records.
// Every record is created tagged OwnerBoth in a single transaction; a
// crash mid-way leaves no partial tree. The submission must not already
// have a tree: Materialize fails with ErrTreeExists instead of stacking a
// second root, since the blobs of a silently replaced tree would be
// orphaned.
func (s *Service) Materialize(submissionID string, tree *Tree) error {
	rootID, err := s.store.InsertTree(submissionID, &tree.Dir)
	if err != nil {
		return fmt.Errorf("persisting tree for submission %s: %w", submissionID, err)
	}
	s.logger.Info("tree materialized", "submission", submissionID, "root", rootID, "size", tree.Size)
	return nil
}

// DeleteSubmission removes the submission's tree records and the blobs
// its leaves referenced. Record deletion is transactional; a blob removal
// failure afterwards leaves an orphaned blob, which is harmless and
// cleaned by the storage sweep.
func (s *Service) DeleteSubmission(submissionID string) error {
	diskNames, err := s.store.DeleteTree(submissionID)
	if err != nil {
		return fmt.Errorf("deleting tree for submission %s: %w", submissionID, err)
	}
	for _, key := range diskNames {
		if err := s.blobs.Remove(key); err != nil {
			s.logger.Error("removing blob of deleted submission", "key", key, "error", err)
		}
	}
	s.logger.Info("submission deleted", "submission", submissionID, "files", len(diskNames))
	return nil
}
