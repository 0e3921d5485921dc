package appointment

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/internal/slot"
)

// Request is an intake submission. Every value arrives as text so that all
// problems can be reported together.
type Request struct {
	FullName    string         `json:"full_name" validate:"required,min=2,max=200"`
	DateOfBirth string         `json:"date_of_birth" validate:"required"`
	Phone       string         `json:"phone" validate:"required,max=32"`
	Email       string         `json:"email" validate:"required,email,max=254"`
	ProviderID  string         `json:"provider_id" validate:"required,uuid"`
	SlotID      string         `json:"slot_id" validate:"required,uuid"`
	Insurance   InsuranceInput `json:"insurance"`
	Reason      string         `json:"reason" validate:"max=1000"`
}

type InsuranceInput struct {
	Provider    string `json:"provider" validate:"required,max=100"`
	MemberID    string `json:"member_id" validate:"required,max=64"`
	GroupNumber string `json:"group_number" validate:"max=64"`
}

func (r Request) trimmed() Request {
	r.FullName = strings.TrimSpace(r.FullName)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(r.Email)
	r.ProviderID = strings.TrimSpace(r.ProviderID)
	r.SlotID = strings.TrimSpace(r.SlotID)
	r.Insurance.Provider = strings.TrimSpace(r.Insurance.Provider)
	r.Insurance.MemberID = strings.TrimSpace(r.Insurance.MemberID)
	r.Insurance.GroupNumber = strings.TrimSpace(r.Insurance.GroupNumber)
	r.Reason = strings.TrimSpace(r.Reason)
	return r
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checked is a request that passed validation, with its values parsed.
type checked struct {
	req         Request
	dateOfBirth time.Time
	provider    *slot.Provider
	anchor      *slot.Slot
}

func (s *Service) validate(ctx context.Context, req Request) (*checked, error) {
	req = req.trimmed()
	verr := &ValidationError{}

	if err := validate.Struct(req); err != nil {
		var fields validator.ValidationErrors
		if !errors.As(err, &fields) {
			return nil, fmt.Errorf("validate request: %w", err)
		}
		for _, fe := range fields {
			verr.add(fieldName(fe), fieldMessage(fe))
		}
	}

	out := &checked{req: req}

	if !verr.has("date_of_birth") {
		dob, err := s.patients.Dates().Parse(req.DateOfBirth)
		switch {
		case errors.Is(err, identity.ErrAmbiguousDate):
			verr.add("date_of_birth", "is ambiguous, use YYYY-MM-DD")
		case err != nil:
			verr.add("date_of_birth", "is not a recognised date")
		case dob.After(identity.CivilDate(s.now().In(s.policy.Location))):
			verr.add("date_of_birth", "cannot be in the future")
		default:
			out.dateOfBirth = dob
		}
	}

	if !verr.has("provider_id") {
		p, err := s.slots.GetProvider(ctx, uuid.MustParse(req.ProviderID))
		switch {
		case errors.Is(err, slot.ErrProviderNotFound):
			verr.add("provider_id", "does not match a provider")
		case err != nil:
			return nil, storageError("load provider", err)
		default:
			out.provider = p
		}
	}

	if !verr.has("slot_id") {
		sl, err := s.slots.Get(ctx, uuid.MustParse(req.SlotID))
		switch {
		case errors.Is(err, slot.ErrSlotNotFound):
			verr.add("slot_id", "does not match a slot")
		case err != nil:
			return nil, storageError("load slot", err)
		case out.provider != nil && sl.ProviderID != out.provider.ID:
			verr.add("slot_id", "belongs to a different provider")
		case !sl.StartsAt.After(s.now()):
			verr.add("slot_id", "has already started")
		default:
			out.anchor = sl
		}
	}

	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return out, nil
}

// fieldName turns "Request.insurance.member_id" into "insurance.member_id".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid id"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}
