package memory

import (
	"github.com/kevin07696/royalty-service/internal/domain"
)

func cloneStatement(s *domain.Statement) *domain.Statement {
	c := *s
	c.Metadata.Header = append([]string(nil), s.Metadata.Header...)
	c.Metadata.Warnings = append([]string(nil), s.Metadata.Warnings...)
	c.Metadata.Records = make([][]string, len(s.Metadata.Records))
	for i, rec := range s.Metadata.Records {
		c.Metadata.Records[i] = append([]string(nil), rec...)
	}
	c.PublishedAt = copyPtr(s.PublishedAt)
	c.PaidAt = copyPtr(s.PaidAt)
	c.PeriodStart = copyPtr(s.PeriodStart)
	c.PeriodEnd = copyPtr(s.PeriodEnd)
	c.Period = copyPtr(s.Period)
	return &c
}

func cloneItem(i *domain.StatementItem) *domain.StatementItem {
	c := *i
	c.UserID = copyPtr(i.UserID)
	c.Metadata.IdentityKeys = append([]string(nil), i.Metadata.IdentityKeys...)
	c.Metadata.SourceRows = append([]int(nil), i.Metadata.SourceRows...)
	c.Metadata.Claims = append([]domain.Claim(nil), i.Metadata.Claims...)
	c.Metadata.Candidates = append([]string(nil), i.Metadata.Candidates...)
	return &c
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.WriterIPINumber = copyPtr(u.WriterIPINumber)
	c.PublisherIPINumber = copyPtr(u.PublisherIPINumber)
	c.PROAffiliation = copyPtr(u.PROAffiliation)
	c.CommissionOverride = copyPtr(u.CommissionOverride)
	return &c
}

func clonePayout(p *domain.PayoutRequest) *domain.PayoutRequest {
	c := *p
	c.ApprovedAt = copyPtr(p.ApprovedAt)
	c.ProcessedAt = copyPtr(p.ProcessedAt)
	c.CompletedAt = copyPtr(p.CompletedAt)
	c.CancelledAt = copyPtr(p.CancelledAt)
	c.TransferID = copyPtr(p.TransferID)
	c.FailureReason = copyPtr(p.FailureReason)
	return &c
}

func cloneCredit(cr *domain.PlacementCredit) *domain.PlacementCredit {
	c := *cr
	c.IPINumber = copyPtr(cr.IPINumber)
	c.PublisherIPINumber = copyPtr(cr.PublisherIPINumber)
	c.UserID = copyPtr(cr.UserID)
	return &c
}

func cloneInvoice(i *domain.Invoice) *domain.Invoice {
	c := *i
	c.PayoutID = copyPtr(i.PayoutID)
	c.StatementID = copyPtr(i.StatementID)
	return &c
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
