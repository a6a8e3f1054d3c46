package contract

import arcerrors "github.com/gezibash/arc-contract/pkg/errors"

var (
	ErrContractNotFound   = arcerrors.New("contract not found", arcerrors.ErrNotFound)
	ErrMemberNotFound     = arcerrors.New("member not found", arcerrors.ErrNotFound)
	ErrOfferingNotFound   = arcerrors.New("service offering not found", arcerrors.ErrNotFound)
	ErrProcessingNotFound = arcerrors.New("data processing not found", arcerrors.ErrNotFound)

	ErrInvalidRequest = arcerrors.New("invalid request", arcerrors.ErrInvalidInput)

	// ErrDuplicateCatalogID indicates an active processing already uses the catalog id.
	ErrDuplicateCatalogID = arcerrors.New("duplicate catalog id", arcerrors.ErrAlreadyExists)

	// ErrMemberRevoked indicates a revoked participant tried to sign again.
	ErrMemberRevoked = arcerrors.New("member revoked", arcerrors.ErrAlreadyExists)
)
