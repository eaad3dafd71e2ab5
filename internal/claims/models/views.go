package models

// Views are the role-specific projections of a claim. Issuers never see the
// holder's career; holders see everything about their own claims.

// IssuerSummary is an employer's list entry: a pending claim awaiting their decision.
type IssuerSummary struct {
	ID     ClaimID `json:"id"`
	Holder string  `json:"holder"`
	Title  string  `json:"title"`
}

// HolderSummary is an employee's list entry.
type HolderSummary struct {
	ID     ClaimID `json:"id"`
	Issuer string  `json:"issuer"`
	Title  string  `json:"title"`
	Status Status  `json:"status"`
}

// IssuerDetail is what an employer sees of one claim.
type IssuerDetail struct {
	ID      ClaimID `json:"id"`
	Holder  string  `json:"holder"`
	Title   string  `json:"title"`
	Content Content `json:"content"`
}

// HolderDetail is what an employee sees of one of their claims.
type HolderDetail struct {
	ID         ClaimID    `json:"id"`
	Issuer     string     `json:"issuer"`
	Title      string     `json:"title"`
	Content    Content    `json:"content"`
	Status     Status     `json:"status"`
	CareerType CareerType `json:"career_type"`
	Career     *Career    `json:"career,omitempty"`
}

// ClaimList is the result of listing claims; exactly one slice is populated,
// depending on the caller's role.
type ClaimList struct {
	Role   Role
	Issuer []IssuerSummary
	Holder []HolderSummary
}

// ClaimDetail is the result of fetching one claim; exactly one field is set.
type ClaimDetail struct {
	Issuer *IssuerDetail
	Holder *HolderDetail
}

func ToIssuerSummary(c *Claim) IssuerSummary {
	return IssuerSummary{ID: c.ID, Holder: c.Owner, Title: c.Title}
}

func ToHolderSummary(c *Claim) HolderSummary {
	return HolderSummary{ID: c.ID, Issuer: c.Issuer, Title: c.Title, Status: c.Status}
}

func ToIssuerDetail(c *Claim) *IssuerDetail {
	return &IssuerDetail{ID: c.ID, Holder: c.Owner, Title: c.Title, Content: c.Content.Submitted()}
}

func ToHolderDetail(c *Claim) *HolderDetail {
	return &HolderDetail{
		ID:         c.ID,
		Issuer:     c.Issuer,
		Title:      c.Title,
		Content:    c.Content.Submitted(),
		Status:     c.Status,
		CareerType: c.CareerType,
		Career:     c.Career,
	}
}
