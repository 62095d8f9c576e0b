package procurement

import "errors"

var (
	ErrProjectNotFound       = errors.New("procurement: project not found")
	ErrBOQItemNotFound       = errors.New("procurement: boq item not found")
	ErrRateSourceNotFound    = errors.New("procurement: rate source not found")
	ErrRateNotFound          = errors.New("procurement: rate not found")
	ErrVendorNotFound        = errors.New("procurement: vendor not found")
	ErrRFQNotFound           = errors.New("procurement: rfq not found")
	ErrQuoteNotFound         = errors.New("procurement: quote not found")
	ErrAgentRunNotFound      = errors.New("procurement: agent run not found")
	ErrClarificationNotFound = errors.New("procurement: clarification not found")

	// ErrInvalidReference is returned when a row points at a parent that
	// does not exist.
	ErrInvalidReference = errors.New("procurement: referenced record does not exist")
	// ErrProjectInUse is returned when deleting a project that RFQs or
	// clarifications still reference.
	ErrProjectInUse = errors.New("procurement: project is still referenced")
	// ErrInvalid wraps validation failures.
	ErrInvalid = errors.New("procurement: invalid record")
)
