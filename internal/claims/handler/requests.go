package handler

import (
	"fmt"
	"strings"

	"attesto/internal/claims/models"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/validation"
	rules "attesto/pkg/validation"
)

// CreateClaimRequest is the body of POST /claims.
type CreateClaimRequest struct {
	Issuer     string         `json:"issuer" validate:"required,did,max=512"`
	Title      string         `json:"title" validate:"required,notblank,max=200"`
	Content    models.Content `json:"content" validate:"required"`
	CareerType string         `json:"career_type" validate:"required"`
}

func (r *CreateClaimRequest) Sanitize() {
	if r == nil {
		return
	}
	r.Issuer = strings.TrimSpace(r.Issuer)
	r.Title = strings.TrimSpace(r.Title)
	r.CareerType = strings.TrimSpace(r.CareerType)
}

func (r *CreateClaimRequest) Normalize() {
	if r == nil {
		return
	}
	r.CareerType = strings.ToUpper(r.CareerType)
}

// Validate checks sizes before syntax so oversized input is rejected without
// walking it.
func (r *CreateClaimRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.CheckStringLength("title", r.Title, validation.MaxTitleLength); err != nil {
		return err
	}
	if err := validation.CheckStringLength("issuer", r.Issuer, validation.MaxDIDLength); err != nil {
		return err
	}
	if err := validation.CheckCount("content fields", len(r.Content), validation.MaxContentFields); err != nil {
		return err
	}
	if err := validation.CheckEachKeyLength("content", r.Content, validation.MaxContentKeyLength); err != nil {
		return err
	}
	for k, v := range r.Content {
		if s, ok := v.(string); ok {
			if err := validation.CheckStringLength(fmt.Sprintf("content[%s]", k), s, validation.MaxContentValueLength); err != nil {
				return err
			}
		}
	}

	if err := rules.Validate(r); err != nil {
		return err
	}
	if err := r.Content.Validate(); err != nil {
		return err
	}
	if _, err := models.ParseCareerType(r.CareerType); err != nil {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return nil
}

// KeystoreRequest carries the issuer's signing key. It is only read when a VC
// claim is accepted.
type KeystoreRequest struct {
	DID        string `json:"did" validate:"required,did,max=512"`
	PrivateKey string `json:"priv_key" validate:"required,hexadecimal"`
}

// DecideRequest is the body of PATCH /claims/{id}.
type DecideRequest struct {
	Status   string           `json:"status" validate:"required"`
	Keystore *KeystoreRequest `json:"keystore"`
}

func (r *DecideRequest) Sanitize() {
	if r == nil {
		return
	}
	r.Status = strings.TrimSpace(r.Status)
	if r.Keystore != nil {
		r.Keystore.DID = strings.TrimSpace(r.Keystore.DID)
		r.Keystore.PrivateKey = strings.TrimSpace(r.Keystore.PrivateKey)
	}
}

func (r *DecideRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := rules.Validate(r); err != nil {
		return err
	}
	if _, err := models.ParseDecision(r.Status); err != nil {
		return err
	}
	return nil
}

func (r *DecideRequest) ToKeystore() models.Keystore {
	if r.Keystore == nil {
		return models.Keystore{}
	}
	return models.Keystore{DID: r.Keystore.DID, PrivateKey: r.Keystore.PrivateKey}
}
