package picture

import (
	"context"
	"fmt"

	"github.com/janhq/picture-api/internal/domain/position"
	"github.com/janhq/picture-api/internal/utils/platformerrors"
)

// AuditLedger reports, per slot, whether the stored ranks form {1..N}. It changes nothing.
func (s *Service) AuditLedger(ctx context.Context) ([]position.Report, error) {
	reports := make([]position.Report, 0, len(position.Slots))
	for _, slot := range position.Slots {
		entries, err := s.repo.Ranked(ctx, slot)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, fmt.Sprintf("read %s ranks", slot))
		}
		reports = append(reports, position.Audit(slot, entries))
	}
	return reports, nil
}

// CompactLedger renumbers every slot that drifted from {1..N}, keeping the relative order of
// its pictures. Ranks written outside the service, such as manual SQL, are the usual cause.
// The returned reports describe the state found before compaction.
func (s *Service) CompactLedger(ctx context.Context) ([]position.Report, error) {
	var reports []position.Report
	err := s.mutate(ctx, func(ctx context.Context) error {
		reports = make([]position.Report, 0, len(position.Slots))
		for _, slot := range position.Slots {
			entries, err := s.repo.Ranked(ctx, slot)
			if err != nil {
				return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, fmt.Sprintf("read %s ranks", slot))
			}
			report := position.Audit(slot, entries)
			for _, step := range report.Plan {
				if err := s.repo.SetRank(ctx, slot, step.ID, step.To); err != nil {
					return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, fmt.Sprintf("renumber %s ranks", slot))
				}
			}
			reports = append(reports, report)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	changed := 0
	for _, report := range reports {
		changed += len(report.Plan)
	}
	if changed > 0 {
		s.log.Warn().Int("reassigned", changed).Msg("ledger compacted")
		s.invalidate(ctx)
	}
	return reports, nil
}
