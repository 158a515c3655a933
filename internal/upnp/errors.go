package upnp

import "fmt"

// UPnP error codes, per the AVTransport:1 and RenderingControl:1 service
// specifications plus the generic control-protocol codes.
const (
	ErrInvalidAction      = 401
	ErrInvalidArgs        = 402
	ErrActionFailed       = 501
	ErrArgumentValueInval = 600
	ErrArgumentValueOOR   = 601

	ErrTransitionNotAvailable = 701
	ErrNoContents             = 702
	ErrReadError              = 703
	ErrFormatNotSupported     = 704
	ErrTransportLocked        = 705
	ErrWriteError             = 706
	ErrProtectedContent       = 707
	ErrFormatMismatch         = 708
	ErrIllegalSeekTarget      = 710
	ErrPlayModeNotSupported   = 712
	ErrRecordQualityNotSupp   = 713
	ErrIllegalMIMEType        = 714
	ErrContentBusy            = 715
	ErrResourceNotFound       = 716
	ErrPlaySpeedNotSupported  = 717
	ErrInvalidInstanceID      = 718
)

// Fault is a SOAP UPnPError: a code plus a human-readable description,
// returned from action handlers and rendered as a SOAP fault by the
// dispatcher.
type Fault struct {
	Code        int
	Description string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("UPnP error %d: %s", f.Code, f.Description)
}

// NewFault builds a Fault, falling back to a generic description table for
// well-known codes when none is supplied.
func NewFault(code int, description string) *Fault {
	if description == "" {
		description = faultDescription(code)
	}
	return &Fault{Code: code, Description: description}
}

func faultDescription(code int) string {
	switch code {
	case ErrInvalidAction:
		return "Invalid Action"
	case ErrInvalidArgs:
		return "Invalid Args"
	case ErrActionFailed:
		return "Action Failed"
	case ErrTransitionNotAvailable:
		return "Transition not available"
	case ErrNoContents:
		return "No contents"
	case ErrReadError:
		return "Read error"
	case ErrFormatNotSupported:
		return "Format not supported"
	case ErrTransportLocked:
		return "Transport locked"
	case ErrWriteError:
		return "Write error"
	case ErrProtectedContent:
		return "Protected content"
	case ErrFormatMismatch:
		return "Format mismatch"
	case ErrIllegalSeekTarget:
		return "Illegal seek target"
	case ErrPlayModeNotSupported:
		return "Play mode not supported"
	case ErrRecordQualityNotSupp:
		return "Record quality not supported"
	case ErrIllegalMIMEType:
		return "Illegal MIME-type"
	case ErrContentBusy:
		return "Content busy"
	case ErrResourceNotFound:
		return "Resource not found"
	case ErrPlaySpeedNotSupported:
		return "Play speed not supported"
	case ErrInvalidInstanceID:
		return "Invalid InstanceID"
	default:
		return "Unknown error"
	}
}
